package routers

import (
	"StoryToVideo-gateway/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	r.Static("/files", "./data")
	r.GET("/health", api.Health)
	r.POST("/render", api.Render)
	v1 := r.Group("/v1/api")
	{
		v1.POST("/generate", api.Generate)
		v1.GET("/tasks/:task_id", api.GetTaskStatus)
		v1.GET("/jobs/:job_id", api.GetJobStatus)
		v1.DELETE("/jobs/:job_id", api.StopJob)
		v1.POST("/projects", api.CreateProject)
		v1.GET("/projects/:project_id", api.GetProject)
		v1.PUT("/projects/:project_id", api.UpdateProject)
		v1.DELETE("/projects/:project_id", api.DeleteProject)
		v1.GET("/projects/:project_id/shots", api.GetShots)
		v1.GET("/projects/:project_id/shots/:shot_id", api.GetShotDetail)
		v1.POST("/projects/:project_id/shots/:shot_id", api.UpdateShot)
		v1.DELETE("/projects/:project_id/shots/:shot_id", api.DeleteShot)
		v1.POST("/projects/:project_id/video", api.GenerateProjectVideo)
		v1.POST("/projects/:project_id/tts", api.GenerateProjectTTS)
	}
	r.GET("/tasks/:task_id/ws", api.TaskProgressWebSocket)
	return r
}
