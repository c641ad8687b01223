package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GRPCPort           string `yaml:"grpc_port" validate:"required,numeric"`
	HTTPPort           string `yaml:"http_port" validate:"required,numeric"`
	LandmarkServiceURL string `yaml:"landmark_service_url" validate:"required"`

	CameraDevice string `yaml:"camera_device" validate:"required"`
	AlarmSound   string `yaml:"alarm_sound" validate:"required"`
	TemplateDir  string `yaml:"template_dir"`
	JPEGQuality  int    `yaml:"jpeg_quality" validate:"min=1,max=100"`

	MaxConnections      int    `yaml:"max_connections" validate:"min=1"`
	RateLimitPerMin     int    `yaml:"rate_limit_per_min" validate:"min=1"`
	ControlPasswordHash string `yaml:"control_password_hash"`

	LogLevel    string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFile     string `yaml:"log_file"`
	Environment string `yaml:"environment" validate:"required"`

	InstanceID string `yaml:"instance_id" validate:"required"`
	MQTTBroker string `yaml:"mqtt_broker"`
	MQTTTopic  string `yaml:"mqtt_topic"`
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// MQTTEnabled reports whether status events should be published to a broker.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadConfig() *Config {
	// .env is optional, system environment wins otherwise
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		GRPCPort:            getEnv("GRPC_PORT", "50051"),
		HTTPPort:            getEnv("HTTP_PORT", "5001"),
		LandmarkServiceURL:  getEnv("LANDMARK_SERVICE_URL", "localhost:9000"),
		CameraDevice:        getEnv("CAMERA_DEVICE", "0"),
		AlarmSound:          getEnv("ALARM_SOUND", "alarm.mp3"),
		TemplateDir:         getEnv("TEMPLATE_DIR", ""),
		JPEGQuality:         getEnvInt("JPEG_QUALITY", 95),
		MaxConnections:      getEnvInt("MAX_CONNECTIONS", 100),
		RateLimitPerMin:     getEnvInt("RATE_PER_MIN", 60),
		ControlPasswordHash: getEnv("CONTROL_PASSWORD_HASH", ""),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		LogFile:             getEnv("LOG_FILE", ""),
		Environment:         getEnv("ENVIRONMENT", "production"),
		InstanceID:          getEnv("INSTANCE_ID", "drowsiness-monitor"),
		MQTTBroker:          getEnv("MQTT_BROKER", ""),
		MQTTTopic:           getEnv("MQTT_TOPIC", "drowsiness/{instance_id}/status"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}

	if cfg.ControlPasswordHash == "" {
		fmt.Println("WARNING: CONTROL_PASSWORD_HASH is not set, start/stop endpoints are open")
	}

	return cfg
}

// applyFile overlays the fields present in a YAML file on top of cfg.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}
