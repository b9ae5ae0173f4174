package engine

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jobs/taskengine/internal/targets"
	"github.com/samber/lo"
)

// vmMask 任务的目标表达式：逗号分隔的VM ID列表，或者不区分大小写的名称子串
type vmMask struct {
	ids  []uuid.UUID
	name string
}

// parseMask 只有全部片段都是合法ID时才按ID匹配，否则整个表达式作为名称过滤
func parseMask(raw string) vmMask {
	tokens := lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	ids := make([]uuid.UUID, 0, len(tokens))
	for _, tok := range tokens {
		id, err := uuid.Parse(tok)
		if err != nil {
			return vmMask{name: strings.ToLower(strings.TrimSpace(raw))}
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return vmMask{name: strings.ToLower(strings.TrimSpace(raw))}
	}
	return vmMask{ids: ids}
}

func (m vmMask) byID() bool {
	return len(m.ids) > 0
}

// Match 按目录顺序返回匹配的目标
func (m vmMask) Match(list []targets.Target) []targets.Target {
	if m.byID() {
		return lo.Filter(list, func(t targets.Target, _ int) bool {
			return lo.Contains(m.ids, t.ID)
		})
	}
	if m.name == "" {
		return nil
	}
	return lo.Filter(list, func(t targets.Target, _ int) bool {
		return strings.Contains(strings.ToLower(t.Name), m.name)
	})
}
