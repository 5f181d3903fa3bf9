package httpapi

import (
	"net/http"
)

const refreshCookieName = "refreshToken"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// setRefreshCookie attaches the refresh credential as an httpOnly, path-wide
// cookie with the refresh lifetime.
func (s *Server) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.refreshTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.auth.Register(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message("user registered successfully"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.setRefreshCookie(w, sess.Refresh.Token)
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken": sess.AccessToken,
		"username":    sess.User.Username,
		"message":     "login successful",
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, message("refresh token missing"))
		return
	}
	access, _, err := s.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken": access,
		"message":     "token refreshed successfully",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	if err := s.auth.Logout(r.Context(), id.Username); err != nil {
		s.writeError(w, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, message("logout successful"))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	var req changePasswordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.auth.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message("password changed successfully"))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	if err := s.auth.DeleteAccount(r.Context(), id.UserID); err != nil {
		s.writeError(w, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, message("account deleted successfully"))
}
