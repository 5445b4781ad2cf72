package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FileURL issues the download URL for a file. Anonymous callers are
// allowed, the service decides whether they get one.
func (a *API) FileURL(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.GetString("userID")

	fileID := c.Param("id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": requestID,
		})
		return
	}

	url, file, err := a.Files.DownloadURL(c.Request.Context(), userID, fileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url": url,
		"file": gin.H{
			"id":        file.ID,
			"name":      file.Name,
			"size":      file.Size,
			"type":      file.Type,
			"is_public": file.IsPublic,
		},
	})
}
