package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`

	// 四个下游生成服务的地址（storyboard/文生图/图生视频/TTS）
	Services struct {
		StoryboardURL string `yaml:"storyboard_url"`
		ImageURL      string `yaml:"image_url"`
		Img2VidURL    string `yaml:"img2vid_url"`
		TTSURL        string `yaml:"tts_url"`
		// 默认超时较长；img2vid 单独给一个较短的超时，超时后走本地兜底
		TimeoutSec        int `yaml:"timeout_sec"`
		Img2VidTimeoutSec int `yaml:"img2vid_timeout_sec"`
	} `yaml:"services"`

	Media struct {
		FinalDir   string `yaml:"final_dir"`
		TmpDir     string `yaml:"tmp_dir"`
		ClipsDir   string `yaml:"clips_dir"`
		FFmpegPath string `yaml:"ffmpeg_path"`
	} `yaml:"media"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
		Domain    string `yaml:"domain"`
	} `yaml:"minio"`
}

var AppConfig *Config

func InitConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	f, err := os.Open(path)
	if err != nil {
		logrus.Fatalf("配置文件读取失败: %v", err)
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	AppConfig = &Config{}
	if err := decoder.Decode(AppConfig); err != nil {
		logrus.Fatalf("配置文件解析失败: %v", err)
	}
	ApplyDefaults(AppConfig)
}

// ApplyDefaults 填充缺省值（测试中也会直接调用）
func ApplyDefaults(c *Config) {
	if c.Services.StoryboardURL == "" {
		c.Services.StoryboardURL = "http://127.0.0.1:8001/storyboard"
	}
	if c.Services.ImageURL == "" {
		c.Services.ImageURL = "http://127.0.0.1:8002/generate"
	}
	if c.Services.Img2VidURL == "" {
		c.Services.Img2VidURL = "http://127.0.0.1:8003/img2vid"
	}
	if c.Services.TTSURL == "" {
		c.Services.TTSURL = "http://127.0.0.1:8004/narration"
	}
	if c.Services.TimeoutSec <= 0 {
		c.Services.TimeoutSec = 600
	}
	if c.Services.Img2VidTimeoutSec <= 0 {
		c.Services.Img2VidTimeoutSec = 120
	}
	if c.Media.FinalDir == "" {
		c.Media.FinalDir = "data/final"
	}
	if c.Media.TmpDir == "" {
		c.Media.TmpDir = "data/final/tmp"
	}
	if c.Media.ClipsDir == "" {
		c.Media.ClipsDir = "data/clips"
	}
	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}
}

// ServiceTimeout 下游服务默认超时
func (c *Config) ServiceTimeout() time.Duration {
	return time.Duration(c.Services.TimeoutSec) * time.Second
}

// Img2VidTimeout 图生视频超时（超过即触发本地兜底）
func (c *Config) Img2VidTimeout() time.Duration {
	return time.Duration(c.Services.Img2VidTimeoutSec) * time.Second
}
