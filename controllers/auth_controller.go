package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/auth"
	"github.com/princinho/toursbackend/dto"
	"github.com/princinho/toursbackend/middleware"
)

// POST /api/v1/users/signup
func Signup(svc *auth.Service, cookies CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.SignupDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, err)
			return
		}
		session, err := svc.Signup(c.Request.Context(), auth.SignupInput{
			Name:            body.Name,
			Email:           body.Email,
			Password:        body.Password,
			ConfirmPassword: body.PasswordConfirm,
		}, baseURL(c)+"/me")
		if err != nil {
			fail(c, err)
			return
		}
		cookies.sendToken(c, http.StatusCreated, session)
	}
}

// POST /api/v1/users/login
func Login(svc *auth.Service, cookies CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, err)
			return
		}
		session, err := svc.Login(c.Request.Context(), body.Email, body.Password)
		if err != nil {
			fail(c, err)
			return
		}
		cookies.sendToken(c, http.StatusOK, session)
	}
}

// GET /api/v1/users/logout
func Logout(svc *auth.Service, cookies CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.Logout(c.Request.Context(), middleware.TokenFromRequest(c))
		cookies.clear(c)
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// POST /api/v1/users/forgotPassword
func ForgotPassword(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ForgotPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, err)
			return
		}
		resetURL := func(raw string) string {
			return baseURL(c) + "/api/v1/users/resetPassword/" + raw
		}
		if err := svc.ForgotPassword(c.Request.Context(), body.Email, resetURL); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Token sent to email!"})
	}
}

// PATCH /api/v1/users/resetPassword/:token
func ResetPassword(svc *auth.Service, cookies CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, err)
			return
		}
		session, err := svc.ResetPassword(c.Request.Context(), c.Param("token"), body.Password, body.PasswordConfirm)
		if err != nil {
			fail(c, err)
			return
		}
		cookies.sendToken(c, http.StatusOK, session)
	}
}

// PATCH /api/v1/users/updateMyPassword
func UpdateMyPassword(svc *auth.Service, cookies CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		var body dto.UpdatePasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, err)
			return
		}
		session, err := svc.UpdatePassword(c.Request.Context(), u.ID, body.PasswordCurrent, body.Password, body.PasswordConfirm)
		if err != nil {
			fail(c, err)
			return
		}
		cookies.sendToken(c, http.StatusOK, session)
	}
}
