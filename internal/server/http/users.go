package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username    string `form:"username" json:"username"`
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	Description string `form:"description" json:"description"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	avatar, err := formImage(c, "avatar")
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}

	u, err := s.users.Register(c.Request.Context(), services.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Description: req.Description,
		Avatar:      avatar,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info(c.Request.Context(), "Registered", "user_id", u.ID)
	ok(c, http.StatusCreated, u, "User registered successfully")
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	if req.Username != "" && req.Email != "" {
		s.badRequest(c, "set username or email, not both")
		return
	}
	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	res, err := s.users.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setSession(c, res.Tokens)
	ok(c, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// refresh takes the refresh token from the body, or from its cookie when the
// body is empty.
func (s *HTTPServer) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(c, "malformed body")
		return
	}
	token := req.RefreshToken
	if token == "" {
		token = s.cookies.Get(c, common.RefreshTokenCookieName)
	}

	pair, err := s.users.Refresh(c.Request.Context(), token)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setSession(c, *pair)
	ok(c, http.StatusOK, pair, "Access token refreshed")
}

func (s *HTTPServer) logout(c *gin.Context) {
	if err := s.users.Logout(c.Request.Context(), identity(c).ID); err != nil {
		s.fail(c, err)
		return
	}
	s.cookies.Clear(c, common.AccessTokenCookieName)
	s.cookies.Clear(c, common.RefreshTokenCookieName)
	ok(c, http.StatusOK, nil, "User logged out successfully")
}

func (s *HTTPServer) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	if err := s.users.ChangePassword(c.Request.Context(), identity(c).ID, req.OldPassword, req.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	s.cookies.Clear(c, common.RefreshTokenCookieName)
	ok(c, http.StatusOK, nil, "Password changed successfully")
}

func (s *HTTPServer) currentUser(c *gin.Context) {
	u, err := s.users.CurrentUser(c.Request.Context(), identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, u, "Current user fetched successfully")
}

func (s *HTTPServer) updateAccount(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	u, err := s.users.UpdateAccount(c.Request.Context(), identity(c).ID, &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, u, "Account details updated successfully")
}

func (s *HTTPServer) updateAvatar(c *gin.Context) {
	img, err := formImage(c, "avatar")
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	u, err := s.users.UpdateAvatar(c.Request.Context(), identity(c).ID, img)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, u, "Avatar updated successfully")
}

func (s *HTTPServer) setSession(c *gin.Context, p services.TokenPair) {
	s.cookies.Set(c, common.AccessTokenCookieName, p.AccessToken, s.deps.AccessTTL)
	s.cookies.Set(c, common.RefreshTokenCookieName, p.RefreshToken, s.deps.RefreshTTL)
}
