package flags

import (
	"danmaku-sync/internal/danmaku"
	"strings"

	"github.com/spf13/cobra"
)

type FProperty[T any] struct {
	Value    T
	Flag     string
	Register FPropertyRegister
	Options  []string
}

type FPropertyRegister interface {
	complete(toComplete string) []string
}

func (f *FProperty[T]) RegisterCompletion(cmd *cobra.Command) {
	if len(f.Options) > 0 {
		_ = cmd.RegisterFlagCompletionFunc(f.Flag, func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return f.Options, cobra.ShellCompDirectiveNoFileComp
		})
		return
	}
	if f.Register != nil && f.Flag != "" {
		_ = cmd.RegisterFlagCompletionFunc(f.Flag, func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return f.Register.complete(toComplete), cobra.ShellCompDirectiveNoFileComp
		})
	}
}

// PlatformCompletion 补全时还没有执行 Init 从 initializer 中读取平台
type PlatformCompletion struct {
	Platforms func() []string
}

func initializedPlatforms() []string {
	var result []string
	for _, v := range danmaku.GetInitializers() {
		if s, ok := v.(danmaku.Service); ok {
			result = append(result, string(s.Platform()))
		}
	}
	return result
}

func (p *PlatformCompletion) complete(toComplete string) []string {
	var platforms = p.Platforms
	if platforms == nil {
		platforms = initializedPlatforms
	}
	var result []string
	for _, v := range platforms() {
		if strings.HasPrefix(v, toComplete) {
			result = append(result, v)
		}
	}
	return result
}
