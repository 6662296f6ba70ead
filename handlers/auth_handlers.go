package handlers

import (
	"errors"
	"net/http"

	"github.com/nikhilsahni7/FormX/auth"
	"github.com/nikhilsahni7/FormX/config"
	"github.com/nikhilsahni7/FormX/models"
)

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	oauthCfg := s.Config.GoogleOAuth()
	if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
		s.Log.Error("google oauth client id or secret is empty")
		http.Error(w, "OAuth configuration error", http.StatusInternalServerError)
		return
	}

	state := config.GenerateStateOauthCookie(w)
	http.Redirect(w, r, oauthCfg.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if err := config.VerifyStateOauthCookie(r); err != nil {
		http.Error(w, "Invalid OAuth state: "+err.Error(), http.StatusBadRequest)
		return
	}

	oauthCfg := s.Config.GoogleOAuth()
	token, err := oauthCfg.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		s.Log.WithError(err).Warn("google token exchange failed")
		http.Error(w, "Failed to exchange token", http.StatusBadGateway)
		return
	}

	user, err := auth.GetGoogleUserInfo(r.Context(), oauthCfg, token)
	if err != nil {
		s.Log.WithError(err).Warn("google user info failed")
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	if err := auth.CreateOrUpdateUser(s.DB, user); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.Auth.Login(w, r, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, s.Config.FrontendURL+"/dashboard", http.StatusSeeOther)
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input credentials
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.CreateUser(s.DB, input.Email, input.Name, input.Password)
	if errors.Is(err, auth.ErrEmailTaken) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Error creating user: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) LoginHandlerEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := s.checkCredentials(w, r)
	if !ok {
		return
	}

	if err := s.Auth.Login(w, r, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// TokenHandler exchanges credentials for a bearer token.
func (s *Server) TokenHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.checkCredentials(w, r)
	if !ok {
		return
	}

	token, err := s.Auth.IssueToken(user.ID, user.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(s.Auth.TTL.Seconds()),
	})
}

func (s *Server) checkCredentials(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	var input credentials
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	user, err := auth.Authenticate(s.DB, input.Email, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return nil, false
	}
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return user, true
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.Logout(w, r); err != nil {
		http.Error(w, "Failed to clear session", http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodGet {
		http.Redirect(w, r, s.Config.FrontendURL+"/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := s.DB.First(&user, currentUser(r)).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
