package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
)

type createSessionRequest struct {
	StudentID  idValue `json:"studentId" binding:"required"`
	CourseID   idValue `json:"courseId" binding:"required"`
	CourseName string  `json:"courseName"`
}

type createCoursePlusRequest struct {
	StudentID   idValue         `json:"studentId" binding:"required"`
	SessionID   idValue         `json:"sessionId"`
	Description string          `json:"description" binding:"required"`
	Hours       int             `json:"hours" binding:"gte=0"`
	Amount      decimal.Decimal `json:"amount"`
}

type createPackageRequest struct {
	StudentID idValue         `json:"studentId" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Sessions  int             `json:"sessions" binding:"gte=0"`
	Amount    decimal.Decimal `json:"amount"`
}

func (s *Server) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	session, err := s.ledgerSvc.CreateSession(c.Request.Context(), ledgerdomain.CreateSessionRequest{
		StudentID:  req.StudentID.String(),
		CourseID:   req.CourseID.String(),
		CourseName: strings.TrimSpace(req.CourseName),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": session})
}

func (s *Server) GetSession(c *gin.Context) {
	session, err := s.ledgerSvc.GetSession(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) CreateCoursePlus(c *gin.Context) {
	var req createCoursePlusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	item, err := s.ledgerSvc.CreateCoursePlus(c.Request.Context(), ledgerdomain.CreateCoursePlusRequest{
		StudentID:   req.StudentID.String(),
		SessionID:   req.SessionID.String(),
		Description: req.Description,
		Hours:       req.Hours,
		Amount:      req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetCoursePlus(c *gin.Context) {
	raw := strings.TrimPrefix(strings.TrimSpace(c.Param("id")), legacyPrefixes[ledgerdomain.KindCoursePlus])
	item, err := s.ledgerSvc.GetCoursePlus(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CreatePackage(c *gin.Context) {
	var req createPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	item, err := s.ledgerSvc.CreatePackage(c.Request.Context(), ledgerdomain.CreatePackageRequest{
		StudentID: req.StudentID.String(),
		Name:      req.Name,
		Sessions:  req.Sessions,
		Amount:    req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetPackage(c *gin.Context) {
	raw := strings.TrimPrefix(strings.TrimSpace(c.Param("id")), legacyPrefixes[ledgerdomain.KindPackage])
	item, err := s.ledgerSvc.GetPackage(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListOpenEntries(c *gin.Context) {
	entries, err := s.ledgerSvc.ListOpenEntries(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}
