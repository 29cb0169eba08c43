package cmd

import (
	"danmaku-sync/cmd/flags"
	"danmaku-sync/internal/config"
	"danmaku-sync/internal/danmaku"
	_ "danmaku-sync/internal/service"
	"danmaku-sync/internal/utils"
	"fmt"
	"os"
)

func Init() {
	// init config
	if err := config.Init(flags.ConfigPath, flags.Debug); err != nil {
		_, _ = fmt.Fprintf(os.Stdout, "config load info: %v\n", err)
	}
	// init logger
	utils.InitLogger(flags.Debug)
	// initializers
	for _, init := range danmaku.GetInitializers() {
		if i, ok := init.(danmaku.Initializer); ok {
			if err := i.Init(); err != nil {
				_, _ = fmt.Fprintf(os.Stdout, "initialize info: %v\n", err)
			}
		}
	}
}

func InitServer() {
	for _, init := range danmaku.GetInitializers() {
		if i, ok := init.(danmaku.ServerInitializer); ok {
			if err := i.ServerInit(); err != nil {
				_, _ = fmt.Fprintf(os.Stdout, "server initialize info: %v\n", err)
			}
		}
	}
}

func Release() {
	for _, init := range danmaku.GetInitializers() {
		if re, ok := init.(danmaku.Finalizer); ok {
			if err := re.Finalize(); err != nil {
				_, _ = fmt.Fprintf(os.Stdout, "release error: %v\n", err)
			}
		}
	}
}
