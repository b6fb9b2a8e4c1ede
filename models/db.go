package models

import (
	"time"

	"StoryToVideo-gateway/config"

	"github.com/sirupsen/logrus"
	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var GormDB *gorm.DB

// InitDB 连接 MySQL 并自动迁移 project/shot 表。
// 任务记录不落库（进程内存即真相来源），这里只持久化项目与分镜。
func InitDB() {
	if config.AppConfig == nil {
		logrus.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("GORM 初始化失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Project{}, &Shot{}); err != nil {
		logrus.Printf("自动建表失败（跳过）: %v", err)
	}

	GormDB = db
	logrus.Println("数据库连接成功 (GORM)")
}
