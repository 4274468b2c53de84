package config

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/screenops/alertcore/internal/escalation"
	"go.uber.org/zap"
)

// WatchRules - escalation rule 파일 변경 시 다시 읽어 onChange 호출
// ctx가 취소될 때까지 실행
//
// 파일이 아니라 상위 디렉터리를 watch 한다. 임시 파일을 rename으로 덮어쓰는
// atomic save와 ConfigMap mount의 ..data symlink 교체는 원래 inode를 없애기 때문.
// reload 실패(잘못된 YAML 등)는 로그만 남기고 이전 규칙을 유지
func WatchRules(ctx context.Context, path string, logger *zap.Logger, onChange func(escalation.RuleTable)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info("watching escalation rules", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRulesEvent(event, path) {
				continue
			}

			rules, err := escalation.LoadRules(path)
			if err != nil {
				logger.Error("escalation rules reload failed, keeping previous rules",
					zap.String("path", path), zap.String("op", event.Op.String()), zap.Error(err))
				continue
			}

			logger.Info("escalation rules reloaded", zap.String("path", path), zap.Int("rules", len(rules)))
			onChange(rules)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("escalation rules watcher error", zap.Error(err))
		}
	}
}

// isRulesEvent - rule 파일 자체 또는 ConfigMap ..data 교체 이벤트만 통과
func isRulesEvent(event fsnotify.Event, path string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if name == path {
		return true
	}
	return filepath.Dir(name) == filepath.Dir(path) && strings.HasPrefix(filepath.Base(name), "..data")
}
