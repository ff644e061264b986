package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка.
// Описание мира (блоки, биомы, слои) хранится в отдельном YAML документе.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Streaming StreamingConfig `yaml:"streaming"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

type WorldConfig struct {
	Path string `yaml:"path"`
	Seed int64  `yaml:"seed"`
}

type SchedulerConfig struct {
	TargetFPS                   float64 `yaml:"target_fps"`
	MaxThreads                  int     `yaml:"max_threads"`
	AsyncMeshing                bool    `yaml:"async_meshing"`
	PauseMeshingWhileGenerating *bool   `yaml:"pause_meshing_while_generating"`
	DrawUnloadedFaces           *bool   `yaml:"draw_unloaded_faces"`
}

type StreamingConfig struct {
	LoadRadius           int     `yaml:"load_radius"`
	EvictionFactor       float64 `yaml:"eviction_factor"`
	WaitBetweenGenerates int     `yaml:"wait_between_generates"`
	WaitBetweenDeletes   int     `yaml:"wait_between_deletes"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

// GetWorldPath возвращает путь к описанию мира
func (w *WorldConfig) GetWorldPath() string {
	return getStringWithEnvFallback(w.Path, "VOXEL_WORLD", "world.yaml")
}

// GetTargetFPS возвращает целевую частоту кадров
func (s *SchedulerConfig) GetTargetFPS() float64 {
	return getFloatWithEnvFallback(s.TargetFPS, "VOXEL_TARGET_FPS", 60)
}

// GetMaxThreads возвращает предел одновременных фоновых задач.
// По умолчанию - количество логических ядер.
func (s *SchedulerConfig) GetMaxThreads() int {
	return getIntWithEnvFallback(s.MaxThreads, "VOXEL_MAX_THREADS", logicalCPUs())
}

// GetPauseMeshingWhileGenerating - не перестраивать меши, пока идёт генерация (по умолчанию true)
func (s *SchedulerConfig) GetPauseMeshingWhileGenerating() bool {
	if s.PauseMeshingWhileGenerating == nil {
		return true
	}
	return *s.PauseMeshingWhileGenerating
}

// GetDrawUnloadedFaces - рисовать грани на границе с незагруженным чанком (по умолчанию true)
func (s *SchedulerConfig) GetDrawUnloadedFaces() bool {
	if s.DrawUnloadedFaces == nil {
		return true
	}
	return *s.DrawUnloadedFaces
}

// GetLoadRadius возвращает радиус подгрузки в колонках чанков
func (s *StreamingConfig) GetLoadRadius() int {
	return getIntWithEnvFallback(s.LoadRadius, "VOXEL_LOAD_RADIUS", 8)
}

// GetEvictionFactor возвращает множитель радиуса для выгрузки
func (s *StreamingConfig) GetEvictionFactor() float64 {
	if s.EvictionFactor > 0 {
		return s.EvictionFactor
	}
	return 1.5
}

// GetWaitBetweenGenerates возвращает паузу между обходами подгрузки (в кадрах)
func (s *StreamingConfig) GetWaitBetweenGenerates() int {
	if s.WaitBetweenGenerates > 0 {
		return s.WaitBetweenGenerates
	}
	return 1
}

// GetWaitBetweenDeletes возвращает паузу между проходами выгрузки (в кадрах)
func (s *StreamingConfig) GetWaitBetweenDeletes() int {
	if s.WaitBetweenDeletes > 0 {
		return s.WaitBetweenDeletes
	}
	return 10
}

// GetAddr возвращает адрес HTTP экспортера метрик; пустая строка отключает экспорт
func (m *MetricsConfig) GetAddr() string {
	return getStringWithEnvFallback(m.Addr, "VOXEL_METRICS_ADDR", "")
}

// GetServiceName возвращает имя сервиса для трассировки
func (t *TelemetryConfig) GetServiceName() string {
	return getStringWithEnvFallback(t.ServiceName, "OTEL_SERVICE_NAME", "voxeld")
}

// GetDSN возвращает DSN Sentry; пустая строка отключает отправку
func (s *SentryConfig) GetDSN() string {
	return getStringWithEnvFallback(s.DSN, "SENTRY_DSN", "")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getFloatWithEnvFallback(configValue float64, envVar string, defaultValue float64) float64 {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.ParseFloat(envVal, 64); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// logicalCPUs возвращает число логических ядер через gopsutil
func logicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG или возвращает пустой конфиг.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return &Config{}, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
