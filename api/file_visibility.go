package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) FileVisibility(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fileID := c.Param("id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": requestID,
		})
		return
	}

	file, err := a.Files.ToggleVisibility(c.Request.Context(), userID, fileID)
	if err != nil {
		respondError(c, err)
		return
	}

	state := "private"
	if file.IsPublic {
		state = "public"
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File is now " + state,
		"file": gin.H{
			"id":        file.ID,
			"name":      file.Name,
			"is_public": file.IsPublic,
		},
	})
}
