package cmd

import (
	"context"
	"danmaku-sync/cmd/flags"
	"danmaku-sync/internal/danmaku"
	"danmaku-sync/internal/utils"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const (
	liveCmdC      = "live_cmd"
	drainInterval = 500 * time.Millisecond
)

func liveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live <id>",
		Short: "follow the danmaku of a live stream or replay",
		Args:  cobra.ExactArgs(1),
	}

	platform := flags.FProperty[string]{Flag: "platform", Register: &flags.PlatformCompletion{}}
	cmd.Flags().StringVar(&platform.Value, platform.Flag, string(danmaku.YouTube), `danmaku platform: 
`+strings.Join([]string{string(danmaku.YouTube), string(danmaku.NicoNico)}, "\n"))
	platform.RegisterCompletion(cmd)
	var replayFrom int64
	cmd.Flags().Int64Var(&replayFrom, "replay-from", 0, "replay start position in milliseconds")
	var savePath string
	cmd.Flags().StringVar(&savePath, "save", "", "save received danmaku as dandan xml into this dir on exit")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		Init()
		id := args[0]
		if id == "" {
			return fmt.Errorf("id is empty")
		}
		var service = danmaku.GetService(platform.Value)
		if service == nil {
			return fmt.Errorf("unsupported platform: %s", platform.Value)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, err := service.NewEngine(ctx, id)
		if err != nil {
			return err
		}
		defer engine.Close()
		if engine.IsDisabled() {
			utils.WarnLog(liveCmdC, "danmaku is not available", "platform", platform.Value, "id", id)
			return nil
		}

		received := follow(ctx, engine, &playbackClock{from: replayFrom, start: time.Now()})
		if savePath == "" {
			return nil
		}
		file, err := danmaku.NewDanDanXML(engine.Platform(), id, received).WriteToFile(savePath, fileName(id), true)
		if err != nil {
			return err
		}
		utils.InfoLog(liveCmdC, "danmaku saved", "file", file, "size", len(received))
		return nil
	}

	return cmd
}

// follow 定时取走弹幕并输出 回放时按墙上时间推进进度
func follow(ctx context.Context, engine *danmaku.Engine, clock *playbackClock) []danmaku.Comment {
	var received []danmaku.Comment
	engine.Start()
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			engine.Stop()
			utils.InfoLog(liveCmdC, "danmaku sync stopped")
			return received
		case now := <-ticker.C:
			if !engine.IsLive() {
				engine.ReportPosition(clock.position(now))
			}
			pending := engine.DrainPending()
			received = append(received, pending...)
			for _, c := range pending {
				utils.InfoLog(liveCmdC, c.Text, "id", c.Identity, "offset_ms", c.Offset.Milliseconds(),
					"position", c.Position.String(), "color", fmt.Sprintf("#%08X", c.ARGBColor))
			}
			if engine.IsDisabled() {
				utils.InfoLog(liveCmdC, "danmaku disabled by upstream")
				return received
			}
		}
	}
}

type playbackClock struct {
	from  int64
	start time.Time
}

func (p *playbackClock) position(now time.Time) int64 {
	return p.from + now.Sub(p.start).Milliseconds()
}

// fileName id 可能是完整的url
func fileName(id string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, id)
}

func init() {
	rootCmd.AddCommand(liveCmd())
}
