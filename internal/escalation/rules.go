package escalation

import (
	"fmt"
	"os"

	"github.com/screenops/alertcore/internal/model"
	"gopkg.in/yaml.v3"
)

// ruleFile - YAML rule 파일 구조
//
//	replace_defaults: false
//	rules:
//	  device_offline:
//	    trigger: minutes_offline
//	    threshold: 45
//	  device_error:
//	    disabled: true
type ruleFile struct {
	ReplaceDefaults bool                    `yaml:"replace_defaults"`
	Rules           map[string]ruleFileItem `yaml:"rules"`
}

type ruleFileItem struct {
	Rule     `yaml:",inline"`
	Disabled bool `yaml:"disabled"`
}

// LoadRules - rule 파일을 읽어 DefaultRules 위에 덮어쓴 테이블 반환
func LoadRules(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read escalation rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules - YAML 바이트에서 규칙 테이블 생성
func ParseRules(data []byte) (RuleTable, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse escalation rules: %w", err)
	}

	table := DefaultRules()
	if file.ReplaceDefaults {
		table = RuleTable{}
	}

	for name, item := range file.Rules {
		alertType := model.AlertType(name)
		if item.Disabled {
			delete(table, alertType)
			continue
		}
		table[alertType] = item.Rule
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escalation rules: %w", err)
	}
	return table, nil
}
