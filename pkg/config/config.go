// Package config는 애플리케이션 설정을 관리하는 패키지입니다.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 인터페이스는 설정 값에 액세스하기 위한 메서드를 정의합니다.
type Config interface {
	GetString(key string) string
	GetInt(key string) int

	// BindEnv는 설정 키에 추가 환경 변수 이름을 연결합니다.
	BindEnv(key string, envVars ...string) error
	// Decode는 환경 변수가 반영된 전체 설정을 yaml 태그 기준으로 out에 채웁니다.
	Decode(out interface{}) error
}

// viperConfig는 viper를 사용하여 Config 인터페이스를 구현합니다.
type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *viperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *viperConfig) BindEnv(key string, envVars ...string) error {
	args := append([]string{key}, envVars...)
	return c.v.BindEnv(args...)
}

// Decode는 viper의 설정 맵을 yaml 노드로 변환한 뒤 out에 디코딩합니다.
// 환경 변수 값은 항상 문자열이므로 스칼라 태그를 지워 대상 필드 타입에 맞게
// 다시 해석되도록 합니다 ("9090" → int, "5m" → time.Duration).
func (c *viperConfig) Decode(out interface{}) error {
	var node yaml.Node
	if err := node.Encode(c.v.AllSettings()); err != nil {
		return fmt.Errorf("설정 직렬화 실패: %w", err)
	}
	untagScalars(&node)
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("설정 디코딩 실패: %w", err)
	}
	return nil
}

func untagScalars(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		n.Tag = ""
		n.Style = 0
	}
	for _, child := range n.Content {
		untagScalars(child)
	}
}

// 설정 디렉토리 경로
const configDir = "configs"

// Load는 지정된 서비스 이름에 해당하는 설정 파일을 로드합니다.
//
// 탐색 순서: CONFIG_PATH 디렉토리(또는 파일), configs/{APP_ENV}, configs/example.
// 환경 변수는 {SERVICE}_ 접두사와 "."→"_" 규칙으로 덮어씁니다.
func Load(serviceName string) (Config, error) {
	v := viper.New()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix(strings.ToUpper(serviceName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" && filepath.Ext(configPath) != "" {
		// CONFIG_PATH가 파일을 직접 가리키는 경우
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
		}
		return &viperConfig{v: v}, nil
	}

	if configPath == "" {
		configPath = filepath.Join(configDir, env)
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(configPath)

	if err := v.ReadInConfig(); err != nil {
		// configs/example 디렉토리의 예제 설정으로 재시도
		v.AddConfigPath(filepath.Join(configDir, "example"))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
		}
	}

	return &viperConfig{v: v}, nil
}
