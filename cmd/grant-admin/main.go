// grant-admin 把已注册账号提升为管理员
//
//	grant-admin -email ops@example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	appuser "github.com/xiebiao/ebookstore/internal/application/user"
	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
	"github.com/xiebiao/ebookstore/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/ebookstore/pkg/logger"
)

func main() {
	email := flag.String("email", "", "要授予管理员角色的账号邮箱")
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})

	db, err := mysql.NewDB(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("连接数据库失败")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := appuser.NewGrantAdminUseCase(mysql.NewUserRepository(db)).Execute(ctx, *email)
	if err != nil {
		log.Error().Err(err).Str("email", *email).Msg("授予管理员失败")
		cancel()
		os.Exit(1)
	}
	log.Info().Uint("user_id", info.ID).Str("email", info.Email).Msg("已授予管理员角色")
}
