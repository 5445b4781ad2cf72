package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) FileList(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	files, err := a.Files.List(c.Request.Context(), userID, c.Query("folder"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
	})
}
