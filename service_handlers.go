package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pdit/models"
	"pdit/pkg/tasks"
)

// --- projects ---

func createProjectHandler(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		ServiceType string `json:"serviceType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	switch req.ServiceType {
	case "", string(models.KindComparison), string(models.KindTranslation):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceType must be comparison or translation"})
		return
	}
	project := models.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		ServiceType: req.ServiceType,
		UserID:      c.GetString("userId"),
	}
	if err := db.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create project"})
		return
	}
	c.JSON(http.StatusCreated, project)
}

func listProjectsHandler(c *gin.Context) {
	q := db.Where("user_id = ?", c.GetString("userId"))
	if s := c.Query("service"); s != "" {
		q = q.Where("service_type = ?", s)
	}
	var projects []models.Project
	if err := q.Order("created_at desc").Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch projects"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Projects fetched successfully", "data": projects})
}

// loadOwnedProject fetches a project and enforces owner-or-admin access.
// It writes the error response itself and returns nil when access fails.
func loadOwnedProject(c *gin.Context) *models.Project {
	var project models.Project
	if err := db.Where("id = ?", c.Param("id")).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return nil
	}
	if project.UserID != c.GetString("userId") && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your project"})
		return nil
	}
	return &project
}

func getProjectHandler(c *gin.Context) {
	project := loadOwnedProject(c)
	if project == nil {
		return
	}
	c.JSON(http.StatusOK, project)
}

func updateProjectHandler(c *gin.Context) {
	project := loadOwnedProject(c)
	if project == nil {
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if err := db.Model(project).Updates(fields).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func deleteProjectHandler(c *gin.Context) {
	project := loadOwnedProject(c)
	if project == nil {
		return
	}
	if err := db.Delete(project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete project"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// --- support tickets ---

func createTicketHandler(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email"`
		Subject string `json:"subject" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email, subject and message are required"})
		return
	}
	ticket := models.SupportTicket{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Status:  "open",
	}
	if err := db.Create(&ticket).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ticket"})
		return
	}
	// Acknowledgement mail is best effort; the ticket exists regardless.
	body := fmt.Sprintf("Hi %s,\r\n\r\nWe received your request %q and will get back to you.\r\n\r\nTicket #%d", req.Name, req.Subject, ticket.ID)
	if err := mailer.Send(c.Request.Context(), []string{req.Email}, "We received your support request", body); err != nil {
		logger.Warn("ticket ack mail", "ticket_id", ticket.ID, "err", err)
	}
	c.JSON(http.StatusCreated, ticket)
}

func listTicketsHandler(c *gin.Context) {
	q := db.Order("created_at desc")
	if !isAdmin(c) {
		q = q.Where("email = ?", c.GetString("email"))
	}
	var tickets []models.SupportTicket
	if err := q.Find(&tickets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tickets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tickets fetched successfully", "data": tickets})
}

func getTicketHandler(c *gin.Context) {
	var ticket models.SupportTicket
	if err := db.Preload("Replies").Where("id = ?", c.Param("id")).First(&ticket).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	if ticket.Email != c.GetString("email") && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your ticket"})
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func updateTicketHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	switch req.Status {
	case "open", "answered", "closed":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open, answered or closed"})
		return
	}
	var ticket models.SupportTicket
	if err := db.Where("id = ?", c.Param("id")).First(&ticket).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	if err := db.Model(&ticket).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ticket"})
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func deleteTicketHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	res := db.Where("id = ?", c.Param("id")).Delete(&models.SupportTicket{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete ticket"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ticket deleted successfully"})
}

func createTicketReplyHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	var ticket models.SupportTicket
	if err := db.Where("id = ?", c.Param("id")).First(&ticket).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	reply := models.AdminReply{
		TicketID:   ticket.ID,
		AdminEmail: c.GetString("email"),
		Message:    req.Message,
	}
	if err := db.Create(&reply).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reply"})
		return
	}
	db.Model(&ticket).Update("status", "answered")

	body := fmt.Sprintf("Hi %s,\r\n\r\nThere is an answer on your request %q:\r\n\r\n%s", ticket.Name, ticket.Subject, req.Message)
	if err := mailer.Send(c.Request.Context(), []string{ticket.Email}, "Re: "+ticket.Subject, body); err != nil {
		logger.Warn("ticket reply mail", "ticket_id", ticket.ID, "err", err)
	}
	c.JSON(http.StatusCreated, reply)
}

// --- announcements ---

func createAnnouncementHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}
	ann := models.Announcement{Title: req.Title, Content: req.Content}
	if err := db.Create(&ann).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create announcement"})
		return
	}
	c.JSON(http.StatusCreated, ann)
}

func listAnnouncementsHandler(c *gin.Context) {
	var anns []models.Announcement
	if err := db.Order("created_at desc").Find(&anns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch announcements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Announcements fetched successfully", "data": anns})
}

func getAnnouncementHandler(c *gin.Context) {
	var ann models.Announcement
	if err := db.Where("id = ?", c.Param("id")).First(&ann).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
		return
	}
	c.JSON(http.StatusOK, ann)
}

func updateAnnouncementHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}
	var ann models.Announcement
	if err := db.Where("id = ?", c.Param("id")).First(&ann).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
		return
	}
	if err := db.Model(&ann).Updates(map[string]any{"title": req.Title, "content": req.Content}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update announcement"})
		return
	}
	c.JSON(http.StatusOK, ann)
}

func deleteAnnouncementHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	res := db.Where("id = ?", c.Param("id")).Delete(&models.Announcement{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete announcement"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Announcement deleted successfully"})
}

// sendAnnouncementHandler mails an announcement to a recipient list. Delivery
// runs on the task runner so large lists don't hold the request open.
func sendAnnouncementHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var req struct {
		Recipients []string `json:"recipients" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipients is required"})
		return
	}
	var ann models.Announcement
	if err := db.Where("id = ?", c.Param("id")).First(&ann).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
		return
	}
	recipients := req.Recipients
	err := runner.Schedule(tasks.Task{
		Name: fmt.Sprintf("announcement-mail:%d", ann.ID),
		Run: func(ctx context.Context) {
			for _, to := range recipients {
				if err := mailer.Send(ctx, []string{to}, ann.Title, ann.Content); err != nil {
					logger.Warn("announcement mail", "announcement_id", ann.ID, "to", to, "err", err)
				}
			}
		},
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mail dispatch queue is full, try again"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "announcement dispatch scheduled"})
}
