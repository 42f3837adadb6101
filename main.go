package main

import (
	"context"
	"flag"
	"log"
	"sync"

	"github.com/fixkme/gointr/framework/app"
	"github.com/fixkme/gointr/framework/config"
	"github.com/fixkme/gointr/mlog"
)

func main() {
	configFile := flag.String("config", "", "config file (.json/.yaml)")
	flag.Parse()

	if err := config.LoadConfig(*configFile, config.EnvOverlay("GOINTR")); err != nil {
		log.Fatalf("load config: %v", err)
	}
	conf := config.Config

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	if conf.LogPath != "" {
		if err := mlog.UseDefaultLogger(ctx, wg, conf.LogPath, conf.LogName, conf.Level(), conf.LogStdOut); err != nil {
			log.Fatalf("init logger: %v", err)
		}
	} else {
		_ = mlog.UseStdLogger(conf.Level())
	}
	mlog.Debugf("config: %s", conf.JsonFormat())

	err := app.DefaultApp().Run(newIntrModule(conf))
	if err != nil {
		mlog.Errorf("app run: %v", err)
	}
	cancel()
	wg.Wait()
	_ = mlog.Sync()
}
