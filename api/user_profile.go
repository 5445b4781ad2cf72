package api

import (
	"net/http"

	"skyvault/file-api/internal/model"
	"skyvault/file-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type updateProfileBody struct {
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

func (a *API) UserProfile(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data updateProfileBody
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	updates := map[string]any{}

	if data.Email != "" {
		if err := validators.EmailValidator(data.Email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		var taken bool
		err := a.DB.Model(model.User{}).
			Select("count(*) > 0").
			Where("email = ? AND id != ?", data.Email, userID).
			Find(&taken).
			Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to check if email is registered", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		if taken {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "This email is already registered",
				"requestID": requestID,
			})
			return
		}

		updates["email"] = data.Email
	}

	if data.Firstname != "" {
		updates["firstname"] = data.Firstname
	}

	if data.Lastname != "" {
		updates["lastname"] = data.Lastname
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No profile fields provided",
			"requestID": requestID,
		})
		return
	}

	err := a.DB.Model(model.User{}).
		Where("id = ?", userID).
		Updates(updates).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update profile", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	var user model.User
	if err := a.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to load user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	a.Audit.Record(userID, model.ActionUpdateUser, "Updated profile fields", nil)

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    user,
	})
}
