package main

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	maxTweetLength = 285
	maxEmailLength = 64
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)

// App bundles the dependencies the handlers share. One instance is
// constructed in main and owns no per-request state.
type App struct {
	cfg      *Config
	store    *Store
	sessions *sessions.CookieStore
	log      *zap.SugaredLogger
}

func newApp(cfg *Config, store *Store, log *zap.SugaredLogger) *App {
	return &App{
		cfg:      cfg,
		store:    store,
		sessions: newCookieStore(cfg.SecretKey),
		log:      log,
	}
}

func (app *App) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.indexHandler).Methods("GET", "POST")
	r.HandleFunc("/all_tweets", app.allTweetsHandler).Methods("GET")
	r.HandleFunc("/all_users", app.allUsersHandler).Methods("GET")
	r.HandleFunc("/register", app.registerHandler).Methods("GET", "POST")
	r.HandleFunc("/login", app.loginHandler).Methods("GET", "POST")
	r.HandleFunc("/logout", app.logoutHandler).Methods("GET")
	r.NotFoundHandler = http.HandlerFunc(app.notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(app.methodNotAllowedHandler)
	return r
}

// GET + POST / — tweet form; posting requires a signed-in user.
func (app *App) indexHandler(w http.ResponseWriter, r *http.Request) {
	user := app.currentUser(r)

	errorMsg := ""
	if r.Method == http.MethodPost {
		if !signedIn(user) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		text := strings.TrimSpace(r.FormValue("text"))
		switch {
		case text == "":
			errorMsg = "You have to enter some text"
		case utf8.RuneCountInString(text) > maxTweetLength:
			errorMsg = "Tweets can be at most 285 characters long"
		}

		if errorMsg == "" {
			existing, err := app.store.TweetByTextAndUser(text, user.UserID)
			if err != nil {
				app.serverError(w, r, err)
				return
			}
			if existing != nil {
				app.addFlash(w, r, "You've already saved a tweet with this text!")
			}
			// The helper runs either way; on a duplicate it returns the
			// existing row and adds nothing.
			labels := splitHashtags(r.FormValue("hashtags"))
			if _, err := app.store.GetOrCreateTweet(text, user.UserID, labels); err != nil {
				app.serverError(w, r, err)
				return
			}
			http.Redirect(w, r, "/all_tweets", http.StatusFound)
			return
		}
	}

	numTweets, err := app.store.TweetCount()
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, "index.html", map[string]interface{}{
		"Error":     errorMsg,
		"NumTweets": numTweets,
	})
}

// GET /all_tweets — the signed-in user's tweets with their hashtags.
func (app *App) allTweetsHandler(w http.ResponseWriter, r *http.Request) {
	user := app.currentUser(r)
	if !signedIn(user) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	tweets, err := app.store.TweetsByUser(user.UserID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	type tweetView struct {
		Text     string
		Hashtags []Hashtag
	}
	views := make([]tweetView, 0, len(tweets))
	for _, tweet := range tweets {
		hashtags, err := app.store.HashtagsForTweet(tweet.TweetID)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		views = append(views, tweetView{Text: tweet.Text, Hashtags: hashtags})
	}

	app.render(w, r, "all_tweets.html", map[string]interface{}{
		"Tweets": views,
	})
}

// GET /all_users — every registered user with its tweet count.
func (app *App) allUsersHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := app.store.UserTweetCounts()
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, "all_users.html", map[string]interface{}{
		"Users": counts,
	})
}

// GET + POST /register
func (app *App) registerHandler(w http.ResponseWriter, r *http.Request) {
	if signedIn(app.currentUser(r)) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	fieldErrors := map[string]string{}
	if r.Method == http.MethodPost {
		email := strings.TrimSpace(r.FormValue("email"))
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		password2 := r.FormValue("password2")

		switch {
		case email == "" || !strings.Contains(email, "@"):
			fieldErrors["email"] = "You have to enter a valid email address"
		case len(email) > maxEmailLength:
			fieldErrors["email"] = "Email addresses can be at most 64 characters long"
		}
		switch {
		case username == "":
			fieldErrors["username"] = "You have to enter a username"
		case !usernamePattern.MatchString(username):
			fieldErrors["username"] = "Usernames must have only letters, numbers, dots or underscores"
		}
		switch {
		case password == "":
			fieldErrors["password"] = "You have to enter a password"
		case password != password2:
			fieldErrors["password2"] = "The two passwords do not match"
		}

		if len(fieldErrors) == 0 {
			existing, err := app.store.UserByEmail(email)
			if err != nil {
				app.serverError(w, r, err)
				return
			}
			if existing != nil {
				fieldErrors["email"] = "Email already registered"
			}
			existing, err = app.store.UserByUsername(username)
			if err != nil {
				app.serverError(w, r, err)
				return
			}
			if existing != nil {
				fieldErrors["username"] = "Username already taken"
			}
		}

		if len(fieldErrors) == 0 {
			if _, err := app.store.CreateUser(username, email, hashPassword(password)); err != nil {
				app.serverError(w, r, err)
				return
			}
			app.addFlash(w, r, "You were successfully registered and can login now")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
	}

	app.render(w, r, "register.html", map[string]interface{}{
		"FieldErrors": fieldErrors,
	})
}

// GET + POST /login
func (app *App) loginHandler(w http.ResponseWriter, r *http.Request) {
	if signedIn(app.currentUser(r)) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	errorMsg := ""
	if r.Method == http.MethodPost {
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		user, err := app.store.UserByEmail(email)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		if user == nil {
			errorMsg = "Invalid email"
		} else if !checkPassword(user.PwHash, password) {
			errorMsg = "Invalid password"
		} else {
			app.setSessionUser(w, r, user)
			app.addFlash(w, r, "You were logged in")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}

	app.render(w, r, "login.html", map[string]interface{}{
		"Error": errorMsg,
	})
}

// GET /logout
func (app *App) logoutHandler(w http.ResponseWriter, r *http.Request) {
	app.clearSessionUser(w, r)
	app.addFlash(w, r, "You were logged out")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (app *App) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	app.render(w, r, "404.html", map[string]interface{}{
		"CurrentUser": nil,
		"Flashes":     []interface{}{},
	})
}

func (app *App) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
	app.render(w, r, "405.html", map[string]interface{}{
		"CurrentUser": nil,
		"Flashes":     []interface{}{},
	})
}

func (app *App) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.log.Errorw("internal error", "path", r.URL.Path, "err", err)
	w.WriteHeader(http.StatusInternalServerError)
	app.render(w, r, "500.html", map[string]interface{}{
		"CurrentUser": nil,
		"Flashes":     []interface{}{},
	})
}
