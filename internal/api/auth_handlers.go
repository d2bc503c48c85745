package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/i18n"
	"github.com/Proton-105/profile-service/internal/middleware"
)

// startLogin redirects the browser to the provider consent page.
func (s *Server) startLogin(c *gin.Context) {
	url, err := s.deps.Auth.LoginURL(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

func (s *Server) loginCallback(c *gin.Context) {
	login, err := s.deps.Auth.HandleCallback(
		c.Request.Context(),
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
	)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeUnauthenticated) {
			status, body := s.deps.Errors.Handle(c.Request.Context(), err)
			c.AbortWithStatusJSON(status, loginFailureResponse{
				Success: false,
				Error:   body.Error,
				Message: body.Message,
			})
			return
		}
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Success:   true,
		Token:     login.Token.Value,
		Type:      "Bearer",
		ExpiresAt: login.Token.ExpiresAt,
		User: loginUser{
			UserID:       login.User.ExternalID,
			ProviderID:   login.User.ProviderID,
			Name:         login.User.Name,
			ProfileImage: login.User.ProfileImage,
		},
		Redirect: s.deps.SuccessRedirectURL,
		Message:  s.t(c).T("message.login_succeeded"),
	})
}

func (s *Server) authStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	c.JSON(http.StatusOK, authStatusResponse{Authenticated: ok, UserID: userID})
}

// listCategories returns the fixed category catalog in canonical order, with localized names.
func (s *Server) listCategories(c *gin.Context) {
	tr := s.t(c)
	majors := domain.Majors()
	resp := make([]majorCategoryResponse, 0, len(majors))
	for _, major := range majors {
		minors := major.Minors()
		item := majorCategoryResponse{
			Code:        string(major),
			DisplayName: displayName(tr, "category.major."+string(major), major.DisplayName()),
			Minors:      make([]minorCategoryResponse, 0, len(minors)),
		}
		for _, minor := range minors {
			item.Minors = append(item.Minors, minorCategoryResponse{
				Code:        string(minor),
				DisplayName: displayName(tr, "category.minor."+string(minor), minor.DisplayName()),
			})
		}
		resp = append(resp, item)
	}

	c.JSON(http.StatusOK, gin.H{"categories": resp})
}

func displayName(tr i18n.Translator, key, fallback string) string {
	if name := tr.T(key); name != key {
		return name
	}
	return fallback
}
