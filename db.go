package main

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite handle. Every query in the application goes
// through one of its methods; lookups return (nil, nil) when no row
// matches.
type Store struct {
	db *sql.DB
}

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    pw_hash TEXT NOT NULL
);
`

const schemaTweets = `
CREATE TABLE IF NOT EXISTS tweets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL CHECK (length(text) <= 285),
    user_id INTEGER NOT NULL REFERENCES users(id),
    UNIQUE (user_id, text)
);
`

const schemaHashtags = `
CREATE TABLE IF NOT EXISTS hashtags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL UNIQUE
);
`

const schemaTweetHashtag = `
CREATE TABLE IF NOT EXISTS tweet_hashtag (
    tweet_id INTEGER NOT NULL REFERENCES tweets(id),
    hashtag_id INTEGER NOT NULL REFERENCES hashtags(id),
    PRIMARY KEY (tweet_id, hashtag_id)
);
`

// openStore opens/creates the SQLite file and ensures tables exist.
func openStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite allows a single writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaUsers,
		schemaTweets,
		schemaHashtags,
		schemaTweetHashtag,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

const (
	insertUserSQL           = `INSERT INTO users (username, email, pw_hash) VALUES (?, ?, ?)`
	selectUserByIDSQL       = `SELECT id, username, email, pw_hash FROM users WHERE id = ?`
	selectUserByUsernameSQL = `SELECT id, username, email, pw_hash FROM users WHERE username = ?`
	selectUserByEmailSQL    = `SELECT id, username, email, pw_hash FROM users WHERE email = ?`

	selectUserTweetCountsSQL = `
		SELECT users.username, COUNT(tweets.id)
		FROM users
		LEFT JOIN tweets ON tweets.user_id = users.id
		GROUP BY users.id
		ORDER BY users.username`

	selectTweetByTextAndUserSQL = `SELECT id, text, user_id FROM tweets WHERE text = ? AND user_id = ?`
	selectTweetsByUserSQL       = `SELECT id, text, user_id FROM tweets WHERE user_id = ? ORDER BY id`
	countTweetsSQL              = `SELECT COUNT(*) FROM tweets`
	insertTweetSQL              = `INSERT OR IGNORE INTO tweets (text, user_id) VALUES (?, ?)`

	selectHashtagByTextSQL = `SELECT id, text FROM hashtags WHERE text = ?`
	insertHashtagSQL       = `INSERT OR IGNORE INTO hashtags (text) VALUES (?)`

	selectHashtagsForTweetSQL = `
		SELECT hashtags.id, hashtags.text
		FROM hashtags
		JOIN tweet_hashtag ON tweet_hashtag.hashtag_id = hashtags.id
		WHERE tweet_hashtag.tweet_id = ?
		ORDER BY hashtags.id`
	insertTweetHashtagSQL = `INSERT OR IGNORE INTO tweet_hashtag (tweet_id, hashtag_id) VALUES (?, ?)`
)

// --- Users ---

// CreateUser inserts a new user and returns its id.
func (s *Store) CreateUser(username, email, pwHash string) (int, error) {
	res, err := s.db.Exec(insertUserSQL, username, email, pwHash)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", username, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", username, err)
	}
	return int(lastID), nil
}

func (s *Store) scanUser(query string, arg interface{}) (*User, error) {
	var u User
	err := s.db.QueryRow(query, arg).Scan(&u.UserID, &u.Username, &u.Email, &u.PwHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user by %v: %w", arg, err)
	}
	return &u, nil
}

func (s *Store) UserByID(id int) (*User, error) {
	return s.scanUser(selectUserByIDSQL, id)
}

func (s *Store) UserByUsername(username string) (*User, error) {
	return s.scanUser(selectUserByUsernameSQL, username)
}

func (s *Store) UserByEmail(email string) (*User, error) {
	return s.scanUser(selectUserByEmailSQL, email)
}

// UserTweetCounts lists every user with the number of tweets it owns,
// including users with none, ordered by username.
func (s *Store) UserTweetCounts() ([]UserTweetCount, error) {
	rows, err := s.db.Query(selectUserTweetCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("select user tweet counts: %w", err)
	}
	defer rows.Close()

	var counts []UserTweetCount
	for rows.Next() {
		var c UserTweetCount
		if err := rows.Scan(&c.Username, &c.TweetCount); err != nil {
			return nil, fmt.Errorf("scan user tweet count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// --- Tweets ---

func (s *Store) TweetByTextAndUser(text string, userID int) (*Tweet, error) {
	var t Tweet
	err := s.db.QueryRow(selectTweetByTextAndUserSQL, text, userID).Scan(&t.TweetID, &t.Text, &t.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select tweet for user %d: %w", userID, err)
	}
	return &t, nil
}

func (s *Store) TweetsByUser(userID int) ([]Tweet, error) {
	rows, err := s.db.Query(selectTweetsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select tweets for user %d: %w", userID, err)
	}
	defer rows.Close()

	var tweets []Tweet
	for rows.Next() {
		var t Tweet
		if err := rows.Scan(&t.TweetID, &t.Text, &t.UserID); err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}

func (s *Store) TweetCount() (int, error) {
	var n int
	if err := s.db.QueryRow(countTweetsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tweets: %w", err)
	}
	return n, nil
}

// --- Hashtags ---

func (s *Store) HashtagByText(text string) (*Hashtag, error) {
	var h Hashtag
	err := s.db.QueryRow(selectHashtagByTextSQL, text).Scan(&h.HashtagID, &h.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select hashtag %q: %w", text, err)
	}
	return &h, nil
}

// HashtagsForTweet returns the tweet's hashtags as a materialized
// slice, ordered by id (creation order).
func (s *Store) HashtagsForTweet(tweetID int) ([]Hashtag, error) {
	rows, err := s.db.Query(selectHashtagsForTweetSQL, tweetID)
	if err != nil {
		return nil, fmt.Errorf("select hashtags for tweet %d: %w", tweetID, err)
	}
	defer rows.Close()

	var hashtags []Hashtag
	for rows.Next() {
		var h Hashtag
		if err := rows.Scan(&h.HashtagID, &h.Text); err != nil {
			return nil, fmt.Errorf("scan hashtag: %w", err)
		}
		hashtags = append(hashtags, h)
	}
	return hashtags, rows.Err()
}

// --- Get-or-create helpers ---

// GetOrCreateHashtag returns the hashtag whose text equals the given
// label, creating it when absent. The lookup-insert-relookup sequence
// plus the UNIQUE constraint lets concurrent creators converge on a
// single row.
func (s *Store) GetOrCreateHashtag(text string) (*Hashtag, error) {
	hashtag, err := s.HashtagByText(text)
	if err != nil || hashtag != nil {
		return hashtag, err
	}
	if _, err := s.db.Exec(insertHashtagSQL, text); err != nil {
		return nil, fmt.Errorf("insert hashtag %q: %w", text, err)
	}
	hashtag, err = s.HashtagByText(text)
	if err != nil {
		return nil, err
	}
	if hashtag == nil {
		return nil, fmt.Errorf("hashtag %q missing after insert", text)
	}
	return hashtag, nil
}

// GetOrCreateTweet returns the tweet matching (text, userID), creating
// it with the given hashtag labels when absent. When the tweet already
// exists the labels are discarded and its stored associations stay as
// they were.
func (s *Store) GetOrCreateTweet(text string, userID int, labels []string) (*Tweet, error) {
	tweet, err := s.TweetByTextAndUser(text, userID)
	if err != nil || tweet != nil {
		return tweet, err
	}

	res, err := s.db.Exec(insertTweetSQL, text, userID)
	if err != nil {
		return nil, fmt.Errorf("insert tweet for user %d: %w", userID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected for tweet insert: %w", err)
	}

	tweet, err = s.TweetByTextAndUser(text, userID)
	if err != nil {
		return nil, err
	}
	if tweet == nil {
		return nil, fmt.Errorf("tweet for user %d missing after insert", userID)
	}
	if inserted == 0 {
		// Lost the race to a concurrent creator; their labels won.
		return tweet, nil
	}

	for _, label := range labels {
		hashtag, err := s.GetOrCreateHashtag(label)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.Exec(insertTweetHashtagSQL, tweet.TweetID, hashtag.HashtagID); err != nil {
			return nil, fmt.Errorf("attach hashtag %q to tweet %d: %w", label, tweet.TweetID, err)
		}
	}
	return tweet, nil
}
