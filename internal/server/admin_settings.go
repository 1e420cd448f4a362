package server

import (
	"github.com/gin-gonic/gin"
)

func handleListSettings(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"data": deps.Settings.All()})
	}
}

type setSettingBody struct {
	Value string `json:"value"`
}

func handleSetSetting(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body setSettingBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeAPIError(c, err)
			return
		}
		if err := deps.Settings.SetDatabase(c.Param("key"), body.Value); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(204)
	}
}

func handleDeleteSetting(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Settings.DeleteDatabase(c.Param("key")); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(204)
	}
}
