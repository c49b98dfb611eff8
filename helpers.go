package main

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const sessionName = "session"

// --- Session helpers ---

func newCookieStore(secretKey string) *sessions.CookieStore {
	s := sessions.NewCookieStore([]byte(secretKey))
	s.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
	}
	return s
}

// currentUser resolves the session's user id to a full User, or nil
// when there is no session or the id no longer resolves.
func (app *App) currentUser(r *http.Request) *User {
	session, _ := app.sessions.Get(r, sessionName)
	userID, ok := session.Values["user_id"].(int)
	if !ok {
		return nil
	}
	user, err := app.store.UserByID(userID)
	if err != nil {
		app.log.Errorw("resolve session user", "user_id", userID, "err", err)
		return nil
	}
	return user
}

func (app *App) setSessionUser(w http.ResponseWriter, r *http.Request, who Identity) {
	session, _ := app.sessions.Get(r, sessionName)
	session.Values["user_id"] = who.ID()
	session.Save(r, w)
}

func (app *App) clearSessionUser(w http.ResponseWriter, r *http.Request) {
	session, _ := app.sessions.Get(r, sessionName)
	delete(session.Values, "user_id")
	session.Save(r, w)
}

func (app *App) addFlash(w http.ResponseWriter, r *http.Request, message string) {
	session, _ := app.sessions.Get(r, sessionName)
	session.AddFlash(message)
	session.Save(r, w)
}

func (app *App) flashes(w http.ResponseWriter, r *http.Request) []interface{} {
	session, _ := app.sessions.Get(r, sessionName)
	flashes := session.Flashes()
	session.Save(r, w)
	return flashes
}

// --- Password helpers ---

func hashPassword(password string) string {
	bytes, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes)
}

func checkPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// --- Form helpers ---

// splitHashtags splits a comma-separated form field into trimmed
// labels, dropping empties.
func splitHashtags(field string) []string {
	var labels []string
	for _, part := range strings.Split(field, ",") {
		if label := strings.TrimSpace(part); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// --- Template helpers ---

func (app *App) render(w http.ResponseWriter, r *http.Request, templateFile string, data map[string]interface{}) {
	tmpl := template.Must(template.ParseFiles("templates/layout.html", "templates/"+templateFile))

	if _, ok := data["CurrentUser"]; !ok {
		data["CurrentUser"] = app.currentUser(r)
	}
	if _, ok := data["Flashes"]; !ok {
		data["Flashes"] = app.flashes(w, r)
	}

	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		app.log.Errorw("render template", "template", templateFile, "err", err)
	}
}
