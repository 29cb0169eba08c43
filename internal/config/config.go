package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	Version  = "dev"
	Debug    = false
	Port     = 8089
	ConfPath = ""
)

var (
	danmakuConfig *DanmakuConfig
	configLock    sync.Mutex
)

// Init 加载指定路径配置 path为空时按默认路径查找
func Init(path string, debug bool) error {
	configLock.Lock()
	defer configLock.Unlock()

	Debug = debug
	conf, err := load(path)
	if err != nil {
		return err
	}
	danmakuConfig = conf
	return nil
}

func GetConfig() *DanmakuConfig {
	configLock.Lock()
	defer configLock.Unlock()

	if danmakuConfig != nil {
		return danmakuConfig
	}
	conf, err := load("")
	if err != nil {
		// 配置文件有问题时依旧使用默认配置启动
		conf = defaultConfig()
	}
	danmakuConfig = conf
	return danmakuConfig
}

func GetPlatformConfig(name string) *PlatformConfig {
	return GetConfig().GetPlatformConfig(name)
}

func load(path string) (*DanmakuConfig, error) {
	var file []byte
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		file = f
		ConfPath = path
	} else {
		file = loadDefaultConfig()
	}

	conf := defaultConfig()
	if file == nil {
		return conf, nil
	}
	if err := yaml.Unmarshal(file, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	conf.fillPlatformDefaults()
	return conf, nil
}

func loadDefaultConfig() []byte {
	home, _ := os.UserHomeDir()
	if home != "" {
		// load from user home .config/danmaku-sync/config.yaml
		CfgPath := filepath.Join(home, ".config", "danmaku-sync", "config.yaml")
		file, _ := os.ReadFile(CfgPath)
		if file != nil {
			ConfPath = CfgPath
			return file
		}
	}
	execPath, _ := os.Executable()
	if execPath != "" {
		CfgPath := filepath.Join(filepath.Dir(execPath), "config.yaml")
		file, _ := os.ReadFile(CfgPath)
		if file != nil {
			ConfPath = CfgPath
			return file
		}
	}
	return nil
}

type DanmakuConfig struct {
	UA                  string `yaml:"ua"`
	MergeDanmakuInMills int64  `yaml:"merge-danmaku-in-mills"`
	Server              struct {
		Port    int   `yaml:"port"`
		Timeout int64 `yaml:"timeout"` // in seconds
	} `yaml:"server"`
	Platforms []*PlatformConfig `yaml:"platforms"`
}

type PlatformConfig struct {
	Name    string `yaml:"name"`
	Cookie  string `yaml:"cookie"`
	Timeout int64  `yaml:"timeout"` // in seconds
	// 弹幕轮询周期
	PeriodMills int64 `yaml:"period-ms"`
	// 上游分段发现周期 只有分段弹幕的平台使用
	DiscoveryPeriodMills int64   `yaml:"discovery-period-ms"`
	RatePerSecond        float64 `yaml:"rate-per-second"`
	// 使用浏览器TLS指纹
	Fingerprint   bool   `yaml:"fingerprint"`
	ClientVersion string `yaml:"client-version"`
}

func (c *DanmakuConfig) GetPlatformConfig(name string) *PlatformConfig {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p
		}
	}
	return nil
}

const (
	defaultTimeoutInSeconds     = 30
	defaultPeriodMills          = 1000
	defaultDiscoveryPeriodMills = 10000
)

func defaultConfig() *DanmakuConfig {
	conf := &DanmakuConfig{
		Platforms: []*PlatformConfig{
			{Name: "youtube"},
			{Name: "niconico", DiscoveryPeriodMills: defaultDiscoveryPeriodMills},
		},
	}
	conf.Server.Port = Port
	conf.Server.Timeout = 60
	conf.fillPlatformDefaults()
	return conf
}

func (c *DanmakuConfig) fillPlatformDefaults() {
	for _, p := range c.Platforms {
		if p.Timeout <= 0 {
			p.Timeout = defaultTimeoutInSeconds
		}
		if p.PeriodMills <= 0 {
			p.PeriodMills = defaultPeriodMills
		}
		if p.Name == "niconico" && p.DiscoveryPeriodMills <= 0 {
			p.DiscoveryPeriodMills = defaultDiscoveryPeriodMills
		}
	}
}
