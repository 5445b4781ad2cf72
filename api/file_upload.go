package api

import (
	"net/http"
	"strconv"

	"skyvault/file-api/internal/service"
	"skyvault/file-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *API) FileUpload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file provided",
			"requestID": requestID,
		})
		return
	}

	code, contentType, err := validators.UploadValidator(fh)
	if err != nil {
		c.JSON(code, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	isPublic, err := strconv.ParseBool(c.DefaultPostForm("is_public", "false"))
	if err != nil {
		isPublic = false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to open multipart file", zap.String("requestID", requestID), zap.Error(err))
		return
	}
	defer f.Close()

	file, err := a.Files.Upload(c.Request.Context(), userID, service.UploadInput{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: contentType,
		Folder:      c.PostForm("folder"),
		Public:      isPublic,
		Body:        f,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "File uploaded successfully",
		"file":    file,
	})
}
