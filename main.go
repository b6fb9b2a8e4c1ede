package main

import (
	"time"

	"StoryToVideo-gateway/config"
	"StoryToVideo-gateway/models"
	"StoryToVideo-gateway/routers"
	"StoryToVideo-gateway/routers/api"
	"StoryToVideo-gateway/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	config.InitConfig()
	logrus.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	service.InitQueue()
	service.InitMinIO()

	hub := service.NewProgressHub(0)
	hub.Start()
	store := service.NewTaskStore(hub)
	clients := service.NewClients(config.AppConfig)
	assembler := service.NewMediaAssembler(config.AppConfig)

	orch := service.NewOrchestrator(store, clients, assembler).
		WithProjectHooks(saveProjectShots, setProjectVideo)
	if service.MinioClient != nil {
		orch.WithUploader(service.UploadVideo)
	}

	api.Init(store, orch)

	processor := service.NewProcessor(store, orch)
	processor.StartProcessor(5)

	r := routers.InitRouter()
	r.Run(config.AppConfig.Server.Port)
}

// saveProjectShots 分镜脚本任务完成后，把分镜按顺序落库
func saveProjectShots(projectID string, scenes []service.Scene) error {
	now := time.Now()
	shots := make([]models.Shot, 0, len(scenes))
	for i, sc := range scenes {
		shots = append(shots, models.Shot{
			ID:        uuid.NewString(),
			ProjectId: projectID,
			SceneId:   sc.SceneID,
			Order:     i + 1,
			Title:     sc.Title,
			Prompt:    sc.Prompt,
			Narration: sc.Narration,
			BGM:       sc.BGM,
			Status:    models.ShotStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return models.BatchCreateShots(models.GormDB, shots)
}

// setProjectVideo 整片生成后回写项目实体
func setProjectVideo(projectID, videoPath string) error {
	p, err := models.GetProjectByID(models.GormDB, projectID)
	if err != nil {
		return err
	}
	return p.UpdateVideo(models.GormDB, videoPath)
}
