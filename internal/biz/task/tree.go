package task

import (
	"slices"
)

// Tree 以ID索引的任务森林，父子关系由TriggerTaskID描述。
// 汇总字段(TotalScore/TotalScoreEarned/TotalStatus)只有在整棵子树都已加载时才有意义。
type Tree struct {
	nodes    map[uint64]*Task
	children map[uint64][]*Task
	roots    []*Task
}

// NewTree 由一个场景或模板的全部任务构建森林，父节点未加载的任务不可达
func NewTree(tasks []*Task) *Tree {
	tree := &Tree{
		nodes:    make(map[uint64]*Task, len(tasks)),
		children: make(map[uint64][]*Task),
	}
	for _, n := range tasks {
		tree.nodes[n.ID] = n
	}
	for _, n := range tasks {
		if n.TriggerTaskID == nil {
			tree.roots = append(tree.roots, n)
			continue
		}
		if _, ok := tree.nodes[*n.TriggerTaskID]; ok {
			tree.children[*n.TriggerTaskID] = append(tree.children[*n.TriggerTaskID], n)
		}
	}

	byID := func(a, b *Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
	slices.SortFunc(tree.roots, byID)
	for _, kids := range tree.children {
		slices.SortFunc(kids, byID)
	}
	return tree
}

func (t *Tree) Get(id uint64) (*Task, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

func (t *Tree) Roots() []*Task {
	return t.roots
}

func (t *Tree) Children(id uint64) []*Task {
	return t.children[id]
}

// Subtree 先序返回id及其全部后代
func (t *Tree) Subtree(id uint64) []*Task {
	root, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := []*Task{root}
	for _, c := range t.children[id] {
		out = append(out, t.Subtree(c.ID)...)
	}
	return out
}

// Rollup 后序计算所有可达节点的汇总字段，返回各根任务TotalScore与TotalScoreEarned之和
func (t *Tree) Rollup() (score int, earned int) {
	for _, root := range t.roots {
		t.rollup(root)
		score += root.TotalScore
		earned += root.TotalScoreEarned
	}
	return score, earned
}

func (t *Tree) TotalScore(id uint64) int {
	n, ok := t.nodes[id]
	if !ok {
		return 0
	}
	t.rollup(n)
	return n.TotalScore
}

func (t *Tree) TotalScoreEarned(id uint64) int {
	n, ok := t.nodes[id]
	if !ok {
		return 0
	}
	t.rollup(n)
	return n.TotalScoreEarned
}

func (t *Tree) TotalStatus(id uint64) Status {
	n, ok := t.nodes[id]
	if !ok {
		return StatusNone
	}
	t.rollup(n)
	return n.TotalStatus
}

// Executable 不可重复执行且整棵子树已成功的任务不能再执行
func (t *Tree) Executable(id uint64) bool {
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	t.rollup(n)
	return n.Executable()
}

func (t *Tree) rollup(n *Task) {
	kids := t.children[n.ID]
	for _, c := range kids {
		t.rollup(c)
	}

	n.TotalScore = totalScore(n, kids)
	n.TotalScoreEarned = n.ScoreEarned()
	statuses := []Status{n.Status}
	for _, c := range kids {
		n.TotalScoreEarned += c.TotalScoreEarned
		statuses = append(statuses, c.TotalStatus)
	}
	n.TotalStatus = rollupStatus(statuses)
}

// totalScore 成功/失败分支只会走其一取较大值，完成分支总会执行，过期分支与前两者互斥
func totalScore(n *Task, kids []*Task) int {
	if len(kids) == 0 {
		return n.Score
	}
	var completion, success, failure, expiration int
	for _, c := range kids {
		switch c.TriggerCondition {
		case TriggerCompletion:
			completion += c.TotalScore
		case TriggerSuccess:
			success += c.TotalScore
		case TriggerFailure:
			failure += c.TotalScore
		case TriggerExpiration:
			expiration += c.TotalScore
		}
	}
	completion += max(success, failure)
	return n.Score + max(completion, expiration)
}

func rollupStatus(statuses []Status) Status {
	for _, s := range rollupPrecedence {
		if slices.Contains(statuses, s) {
			return s
		}
	}
	return StatusSucceeded
}
