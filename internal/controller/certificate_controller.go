package controller

import (
	"encoding/json"

	"coursecraft_backend/internal/service"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

type issueRequest struct {
	CourseID uint `json:"courseId" form:"course_id" binding:"required"`
}

// @Summary Issue certificate
// @Description Idempotent: repeated calls return the same certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body issueRequest true "Course"
// @Success 200 {object} util.Response
// @Router /api/certificates/issue [post]
func (c *CertificateController) Issue(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	var req issueRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	cert, err := c.CertificateService.IssueFor(ctx.Request.Context(), actor, req.CourseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"id":       cert.ID,
		"serial":   cert.Serial,
		"issuedAt": cert.IssuedAt,
	})
}

// @Summary My certificate
// @Description The caller's certificate for a course with its template layout
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/certificate [get]
func (c *CertificateController) Get(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	view, err := c.CertificateService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary Verify certificate
// @Description Public lookup by serial
// @Tags Certificates
// @Produce json
// @Param serial path string true "Serial"
// @Success 200 {object} util.Response
// @Router /api/certificates/verify/{serial} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	v, err := c.CertificateService.Verify(ctx.Request.Context(), ctx.Param("serial"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// @Summary Create certificate template
// @Description JSON body, or multipart with name, activate, layout (JSON) and an optional background image
// @Tags Certificate templates
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Name"
// @Param activate formData bool false "Make it the active template"
// @Param layout formData string false "Layout JSON"
// @Param background formData file false "Background image or PDF"
// @Success 201 {object} util.Response
// @Router /api/admin/certificate-templates [post]
func (c *CertificateController) CreateTemplate(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req service.TemplateCreateRequest
	var bg *service.Background
	if ctx.ContentType() == binding.MIMEMultipartPOSTForm {
		if err := ctx.ShouldBind(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
		if raw := ctx.PostForm("layout"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Layout); err != nil {
				util.BadRequest(ctx, "invalid layout: "+err.Error())
				return
			}
		}
		if fh, err := ctx.FormFile("background"); err == nil {
			sniff, err := fh.Open()
			if err != nil {
				util.LogInternalError(ctx, err)
				return
			}
			mime, err := util.ValidateMimeType(sniff, []string{util.MimeImage, util.MimePDF})
			sniff.Close()
			if err != nil {
				util.BadRequest(ctx, err.Error())
				return
			}
			file, err := fh.Open()
			if err != nil {
				util.LogInternalError(ctx, err)
				return
			}
			defer file.Close()
			bg = &service.Background{
				Filename:    fh.Filename,
				ContentType: mime,
				Size:        fh.Size,
				Reader:      file,
			}
		}
	} else if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tmpl, err := c.CertificateService.CreateTemplate(ctx.Request.Context(), actor, req, bg)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, tmpl)
}

// @Summary Activate certificate template
// @Description Makes the template the only active one. Issued certificates keep their template.
// @Tags Certificate templates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Template ID"
// @Success 200 {object} util.Response
// @Router /api/admin/certificate-templates/{id}/activate [post]
func (c *CertificateController) ActivateTemplate(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	tmpl, err := c.CertificateService.ActivateTemplate(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, tmpl)
}

// @Summary List certificate templates
// @Tags Certificate templates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/certificate-templates [get]
func (c *CertificateController) ListTemplates(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}
	templates, err := c.CertificateService.ListTemplates(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, templates)
}
