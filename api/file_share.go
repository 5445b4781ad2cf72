package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FileShare returns a link to the app's public viewer route for a
// public file. Private files are refused outright, even for the owner,
// toggle them public first.
func (a *API) FileShare(c *gin.Context) {
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

	shareURL, file, err := a.Files.ShareLink(c.Request.Context(), userID, fileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shareUrl": shareURL,
		"file": gin.H{
			"id":   file.ID,
			"name": file.Name,
			"type": file.Type,
		},
	})
}
