package service

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"StoryToVideo-gateway/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

var MinioClient *minio.Client

// InitMinIO 初始化连接。endpoint 未配置时跳过（成片只留本地路径）
func InitMinIO() {
	cfg := config.AppConfig.MinIO
	if cfg.Endpoint == "" {
		logrus.Println("MinIO 未配置，成片不上传")
		return
	}
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logrus.Fatalf("MinIO 初始化失败: %v", err)
	}
	logrus.Println("MinIO 连接成功")
}

// UploadVideo 上传本地成片到 MinIO，返回 24 小时有效的签名 URL
func UploadVideo(localPath string, taskID string) (string, error) {
	if MinioClient == nil {
		return "", fmt.Errorf("minio not configured")
	}
	ctx := context.Background()
	cfg := config.AppConfig.MinIO
	bucketName := cfg.Bucket

	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err == nil && !exists {
		MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	}

	// 云端路径: tasks/<task_id>/final_<task_id>.mp4
	objectName := fmt.Sprintf("tasks/%s/%s", taskID, filepath.Base(localPath))
	_, err = MinioClient.FPutObject(ctx, bucketName, objectName, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("上传 MinIO 失败: %w", err)
	}

	expiry := time.Hour * 24
	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}
	logrus.Printf("成片已上传: %s", objectName)
	return presignedURL.String(), nil
}
