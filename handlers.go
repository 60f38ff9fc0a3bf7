package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdit/models"
)

const defaultPicture = "https://api.dicebear.com/7.x/initials/svg?seed="

func setupRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/register", registerHandler)
	r.POST("/verify-otp", verifyOTPHandler)
	r.POST("/resend-otp", resendOTPHandler)
	r.POST("/login", loginHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	{
		authGroup.GET("/me", meHandler)

		authGroup.POST("/projects", createProjectHandler)
		authGroup.GET("/projects", listProjectsHandler)
		authGroup.GET("/projects/:id", getProjectHandler)
		authGroup.PUT("/projects/:id", updateProjectHandler)
		authGroup.DELETE("/projects/:id", deleteProjectHandler)
		authGroup.GET("/projects/:id/documents", listProjectDocumentsHandler)

		authGroup.POST("/documents", createDocumentHandler)
		authGroup.GET("/documents/:id", getDocumentHandler)
		authGroup.PUT("/documents/:id", updateDocumentHandler)
		authGroup.DELETE("/documents/:id", deleteDocumentHandler)

		authGroup.POST("/tickets", createTicketHandler)
		authGroup.GET("/tickets", listTicketsHandler)
		authGroup.GET("/tickets/:id", getTicketHandler)
		authGroup.PUT("/tickets/:id", updateTicketHandler)
		authGroup.DELETE("/tickets/:id", deleteTicketHandler)
		authGroup.POST("/tickets/:id/replies", createTicketReplyHandler)

		authGroup.POST("/announcements", createAnnouncementHandler)
		authGroup.GET("/announcements", listAnnouncementsHandler)
		authGroup.GET("/announcements/:id", getAnnouncementHandler)
		authGroup.PUT("/announcements/:id", updateAnnouncementHandler)
		authGroup.DELETE("/announcements/:id", deleteAnnouncementHandler)
		authGroup.POST("/announcements/:id/send", sendAnnouncementHandler)
	}
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}
		if sub, ok := claims["sub"].(string); ok {
			c.Set("userId", sub)
		}
		if email, ok := claims["email"].(string); ok {
			c.Set("email", email)
		}
		if role, ok := claims["role"].(string); ok {
			c.Set("role", role)
		}
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == "administrator"
}

func registerHandler(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing int64
	db.Model(&models.User{}).Where("email = ?", email).Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process password"})
		return
	}

	// Upsert the pending registration; re-registering refreshes the details.
	pending := models.PendingUser{
		Email:          email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		HashedPassword: hashed,
		ExpiresAt:      time.Now().Add(7 * 24 * time.Hour),
	}
	var prev models.PendingUser
	if err := db.Where("email = ?", email).First(&prev).Error; err == nil {
		db.Model(&prev).Updates(map[string]any{
			"first_name":      pending.FirstName,
			"last_name":       pending.LastName,
			"hashed_password": pending.HashedPassword,
			"expires_at":      pending.ExpiresAt,
		})
	} else if err := db.Create(&pending).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store registration"})
		return
	}

	if err := sendOTP(c.Request.Context(), email); err != nil {
		logger.Error("send otp mail", "email", email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send OTP email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent, verify to complete registration"})
}

func verifyOTPHandler(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Otp   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and otp are required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var v models.Verification
	if err := db.Where("email = ? AND code = ? AND used = ?", email, req.Otp, false).
		Order("id desc").First(&v).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid OTP"})
		return
	}
	if time.Now().After(v.ExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OTP expired, request a new one"})
		return
	}

	var pending models.PendingUser
	if err := db.Where("email = ?", email).First(&pending).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending registration for this email"})
		return
	}

	var role models.Role
	var roleID *uint
	if err := db.Where("name = ?", "user").First(&role).Error; err == nil {
		roleID = &role.ID
	}

	user := models.User{
		ID:             uuid.NewString(),
		Email:          email,
		FirstName:      pending.FirstName,
		LastName:       pending.LastName,
		Picture:        defaultPicture + email,
		HashedPassword: pending.HashedPassword,
		RoleID:         roleID,
	}
	if err := db.Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	db.Model(&models.Verification{}).Where("email = ?", email).Update("used", true)
	db.Delete(&pending)

	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func resendOTPHandler(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var pending models.PendingUser
	if err := db.Where("email = ?", email).First(&pending).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending registration for this email"})
		return
	}

	// Invalidate earlier codes so only the latest works.
	db.Where("email = ? AND used = ?", email, false).Delete(&models.Verification{})

	if err := sendOTP(c.Request.Context(), email); err != nil {
		logger.Error("resend otp mail", "email", email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send OTP email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP resent"})
}

func sendOTP(ctx context.Context, email string) error {
	code, err := generateOTP()
	if err != nil {
		return err
	}
	minutes := envInt("OTP_EXPIRY_MINUTES", 5)
	v := models.Verification{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(time.Duration(minutes) * time.Minute),
	}
	if err := db.Create(&v).Error; err != nil {
		return err
	}
	body := fmt.Sprintf("Your verification code is: %s\r\n\r\nIt expires in %d minutes.", code, minutes)
	return mailer.Send(ctx, []string{email}, "Your PDIT verification code", body)
}

// generateOTP produces a 6-digit code from crypto/rand.
func generateOTP() (string, error) {
	const digits = "0123456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}

func loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	user, err := Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := issueAccessToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func meHandler(c *gin.Context) {
	email := c.GetString("email")
	var user models.User
	if err := db.Preload("Role").Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}
