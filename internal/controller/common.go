package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"coursecraft_backend/internal/model"
	"coursecraft_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func actorOf(ctx *gin.Context) (model.Actor, bool) {
	actor, ok := util.GetActor(ctx)
	if !ok {
		util.Unauthorized(ctx)
	}
	return actor, ok
}

func idParam(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func isFormRequest(ctx *gin.Context) bool {
	ct := ctx.ContentType()
	return ct == binding.MIMEPOSTForm || ct == binding.MIMEMultipartPOSTForm
}

// formInt reads an optional integer field from a form body. A missing or
// blank field is nil.
func formInt(ctx *gin.Context, key string) (*int, error) {
	v, ok := ctx.GetPostForm(key)
	if !ok {
		return nil, nil
	}
	return util.ParseOptionalInt(v)
}

func formUint(ctx *gin.Context, key string) (*uint, error) {
	v, ok := ctx.GetPostForm(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil || n == 0 {
		return nil, util.Invalidf("invalid %s %q", key, v)
	}
	id := uint(n)
	return &id, nil
}

// formResult answers the form-encoded editor endpoints. Browsers posting a
// plain form are redirected; script clients asking for JSON get
// {ok, id, redirect_to}.
func formResult(ctx *gin.Context, id uint, redirectTo string) {
	if target := strings.TrimSpace(ctx.PostForm("redirect_to")); strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		redirectTo = target
	}
	if isFormRequest(ctx) && !strings.Contains(ctx.GetHeader("Accept"), binding.MIMEJSON) {
		ctx.Redirect(http.StatusSeeOther, redirectTo)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"id":          id,
		"redirect_to": redirectTo,
	})
}

func courseEditPath(courseID uint) string {
	return fmt.Sprintf("/courses/%d/edit", courseID)
}
