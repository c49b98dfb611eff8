package main

import (
	"os"
	"sync"
	"testing"
)

// Open a store backed by a fresh temp database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "hashtwit-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := openStore(tmpFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateUser(t *testing.T, store *Store, username string) int {
	t.Helper()
	id, err := store.CreateUser(username, username+"@example.com", hashPassword("default"))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func hashtagTexts(hashtags []Hashtag) []string {
	texts := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		texts = append(texts, h.Text)
	}
	return texts
}

func TestGetOrCreateHashtagIdempotent(t *testing.T) {
	store := newTestStore(t)

	first, err := store.GetOrCreateHashtag("foo")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.GetOrCreateHashtag("foo")
	if err != nil {
		t.Fatal(err)
	}
	if second.HashtagID != first.HashtagID {
		t.Errorf("expected same hashtag id, got %d and %d", first.HashtagID, second.HashtagID)
	}

	var n int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM hashtags WHERE text = ?", "foo").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected exactly one row for label, got %d", n)
	}
}

func TestGetOrCreateTweetKeepsFirstHashtags(t *testing.T) {
	store := newTestStore(t)
	userID := mustCreateUser(t, store, "alice")

	first, err := store.GetOrCreateTweet("hello world", userID, []string{"foo", "bar"})
	if err != nil {
		t.Fatal(err)
	}

	// Second call with different labels must return the same tweet and
	// leave its hashtag set untouched.
	second, err := store.GetOrCreateTweet("hello world", userID, []string{"baz"})
	if err != nil {
		t.Fatal(err)
	}
	if second.TweetID != first.TweetID {
		t.Errorf("expected same tweet id, got %d and %d", first.TweetID, second.TweetID)
	}

	hashtags, err := store.HashtagsForTweet(first.TweetID)
	if err != nil {
		t.Fatal(err)
	}
	texts := hashtagTexts(hashtags)
	if len(texts) != 2 || texts[0] != "foo" || texts[1] != "bar" {
		t.Errorf("expected hashtags [foo bar], got %v", texts)
	}
	if ht, err := store.HashtagByText("baz"); err != nil {
		t.Fatal(err)
	} else if ht != nil {
		t.Error("did not expect the duplicate call's label to be created")
	}
}

func TestConcurrentGetOrCreateConverges(t *testing.T) {
	store := newTestStore(t)
	userID := mustCreateUser(t, store, "alice")

	const workers = 8

	// Concurrent creators of one new label must converge on one row.
	hashtagIDs := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hashtag, err := store.GetOrCreateHashtag("shared")
			if err != nil {
				t.Error(err)
				return
			}
			hashtagIDs <- hashtag.HashtagID
		}()
	}
	wg.Wait()
	close(hashtagIDs)

	first, ok := -1, false
	for id := range hashtagIDs {
		if !ok {
			first, ok = id, true
		} else if id != first {
			t.Errorf("expected every caller to get hashtag id %d, got %d", first, id)
		}
	}
	if !ok {
		t.Fatal("expected at least one hashtag id")
	}
	var n int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM hashtags WHERE text = ?", "shared").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected exactly one hashtag row, got %d", n)
	}

	// Same for one new (text, user) tweet.
	tweetIDs := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tweet, err := store.GetOrCreateTweet("same text", userID, []string{"shared"})
			if err != nil {
				t.Error(err)
				return
			}
			tweetIDs <- tweet.TweetID
		}()
	}
	wg.Wait()
	close(tweetIDs)

	first, ok = -1, false
	for id := range tweetIDs {
		if !ok {
			first, ok = id, true
		} else if id != first {
			t.Errorf("expected every caller to get tweet id %d, got %d", first, id)
		}
	}
	if !ok {
		t.Fatal("expected at least one tweet id")
	}
	if err := store.db.QueryRow("SELECT COUNT(*) FROM tweets WHERE text = ? AND user_id = ?", "same text", userID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected exactly one tweet row, got %d", n)
	}
}

func TestHashtagsSharedAcrossUsers(t *testing.T) {
	store := newTestStore(t)
	aliceID := mustCreateUser(t, store, "alice")
	bobID := mustCreateUser(t, store, "bob")

	aliceTweet, err := store.GetOrCreateTweet("hello world", aliceID, []string{"foo", "bar"})
	if err != nil {
		t.Fatal(err)
	}
	bobTweet, err := store.GetOrCreateTweet("hello world", bobID, []string{"foo", "bar"})
	if err != nil {
		t.Fatal(err)
	}

	// Same text, different owner: a second, distinct tweet row.
	if bobTweet.TweetID == aliceTweet.TweetID {
		t.Error("expected distinct tweet rows per owner")
	}

	aliceTags, err := store.HashtagsForTweet(aliceTweet.TweetID)
	if err != nil {
		t.Fatal(err)
	}
	bobTags, err := store.HashtagsForTweet(bobTweet.TweetID)
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceTags) != 2 || len(bobTags) != 2 {
		t.Fatalf("expected two hashtags each, got %d and %d", len(aliceTags), len(bobTags))
	}
	for i := range aliceTags {
		if aliceTags[i].HashtagID != bobTags[i].HashtagID {
			t.Errorf("expected shared hashtag rows, got ids %d and %d", aliceTags[i].HashtagID, bobTags[i].HashtagID)
		}
	}

	var n int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM hashtags").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected hashtag rows reused, not duplicated; got %d rows", n)
	}
}

func TestUserTweetCounts(t *testing.T) {
	store := newTestStore(t)
	aliceID := mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "bob")

	if _, err := store.GetOrCreateTweet("first", aliceID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreateTweet("second", aliceID, nil); err != nil {
		t.Fatal(err)
	}

	counts, err := store.UserTweetCounts()
	if err != nil {
		t.Fatal(err)
	}
	want := []UserTweetCount{
		{Username: "alice", TweetCount: 2},
		{Username: "bob", TweetCount: 0},
	}
	if len(counts) != len(want) {
		t.Fatalf("expected %d users, got %d", len(want), len(counts))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("count %d: expected %+v, got %+v", i, want[i], counts[i])
		}
	}
}

func TestUserLookups(t *testing.T) {
	store := newTestStore(t)
	id := mustCreateUser(t, store, "alice")

	byID, err := store.UserByID(id)
	if err != nil || byID == nil {
		t.Fatalf("expected user by id, got %v, %v", byID, err)
	}
	byEmail, err := store.UserByEmail("alice@example.com")
	if err != nil || byEmail == nil || byEmail.UserID != id {
		t.Fatalf("expected user by email, got %v, %v", byEmail, err)
	}

	missing, err := store.UserByUsername("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown username, got %+v", missing)
	}
}
