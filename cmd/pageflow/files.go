package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/pageflow/browser"
)

// inputFile 是读入内存的动作或定位器文件，"-" 表示 stdin
type inputFile struct {
	path string
	data []byte
}

func readInput(path string, stdin io.Reader) (*inputFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &inputFile{path: path, data: data}, nil
}

// decode 按扩展名选择 JSON 或 YAML；YAML 是 JSON 的超集，其他情况都走 YAML
func (f *inputFile) decode(dest any) error {
	var err error
	if strings.EqualFold(filepath.Ext(f.path), ".json") {
		err = json.Unmarshal(f.data, dest)
	} else {
		err = yaml.Unmarshal(f.data, dest)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", f.path, err)
	}
	return nil
}

// actionScript 允许 {actions: [...]} 形式的脚本
type actionScript struct {
	Actions []browser.Descriptor `json:"actions" yaml:"actions"`
}

// loadActions 读取动作脚本：裸列表或 actions 字段
func loadActions(path string, stdin io.Reader) ([]browser.Descriptor, error) {
	f, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}

	var list []browser.Descriptor
	if err := f.decode(&list); err == nil {
		return list, nil
	}

	var script actionScript
	if err := f.decode(&script); err != nil {
		return nil, err
	}
	return script.Actions, nil
}

// loadLocators 读取有序的 field -> selector 映射
func loadLocators(path string, stdin io.Reader) (browser.LocatorMap, error) {
	f, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}

	var m browser.LocatorMap
	if err := f.decode(&m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// writeJSON 以缩进 JSON 输出结果
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
