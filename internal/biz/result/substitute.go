package result

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

var (
	moidPattern   = regexp.MustCompile(`(?i)\{moid\}`)
	vmNamePattern = regexp.MustCompile(`(?i)\{vmname\}`)
)

// Substitute 用目标身份和调用方提供的键值替换输入中的占位符
func (r *Result) Substitute() string {
	input := r.InputString
	for key, value := range r.Substitutions {
		input = strings.ReplaceAll(input, "{{"+key+"}}", value)
	}
	if r.VMID != nil {
		input = moidPattern.ReplaceAllLiteralString(input, r.VMID.String())
		input = vmNamePattern.ReplaceAllLiteralString(input, r.VMName)
	}
	return input
}

// Stringify 把调用方传入的任意值转为替换文本
func Stringify(values map[string]any) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = cast.ToString(v)
	}
	return out
}
