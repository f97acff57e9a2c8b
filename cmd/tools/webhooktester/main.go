package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/techfala/ia-wizard/backend/internal/config"
	"github.com/techfala/ia-wizard/backend/internal/service/identity"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

func main() {
	log := logger.L()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		log.Warnf("无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: reserve、message、prompt 或 phones")
	personality := flag.String("personality", "contabilidade", "reserve 模式使用的人格 ID")
	text := flag.String("text", "", "message 模式发送的文本")
	prompt := flag.String("prompt", "", "prompt 模式发送的提示词")
	promptMode := flag.String("prompt-mode", string(webhook.PromptOriginal), "提示词模式: original 或 alteracao")
	phones := flag.String("phones", "", "phones 模式的号码列表，逗号分隔，最多 3 个")
	baseURL := flag.String("url", cfg.Webhook.BaseURL, "自动化后端地址")
	token := flag.String("token", cfg.Webhook.Token, "Bearer token，留空则不发送")
	identityPath := flag.String("identity", ".webhooktester.json", "访客 ID 的持久化文件")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	userID, err := identity.Resolve(ctx, identity.NewFileStorage(*identityPath))
	if err != nil {
		log.Fatalf("访客 ID 解析失败: %v", err)
	}

	client := webhook.NewClient(webhook.Config{BaseURL: *baseURL, Token: *token, Timeout: *timeout}.Normalize(), userID,
		webhook.WithLogger(logger.Base()))
	log.Infof("使用访客 ID %s 调用 %s", userID, client.Config().BaseURL)

	switch *mode {
	case "reserve":
		session, err := client.ReserveNumber(ctx, *personality)
		if err != nil {
			log.Fatalf("号码预留失败: %v", err)
		}
		printJSON(session)
	case "message":
		if strings.TrimSpace(*text) == "" {
			log.Fatal("message 模式需要通过 -text 提供消息内容")
		}
		body, err := client.SendMessage(ctx, *text)
		if err != nil {
			log.Fatalf("消息发送失败: %v", err)
		}
		fmt.Println(webhook.ExtractReply(body))
	case "prompt":
		if strings.TrimSpace(*prompt) == "" {
			log.Fatal("prompt 模式需要通过 -prompt 提供提示词")
		}
		pm := webhook.PromptMode(*promptMode)
		if pm != webhook.PromptOriginal && pm != webhook.PromptAlteracao {
			log.Fatalf("未知的提示词模式: %s", *promptMode)
		}
		body, err := client.SendPrompt(ctx, *prompt, pm)
		if err != nil {
			log.Fatalf("提示词发送失败: %v", err)
		}
		printJSON(body)
	case "phones":
		list := splitPhones(*phones)
		if len(list) == 0 || len(list) > 3 {
			log.Fatal("phones 模式需要 1 到 3 个号码")
		}
		if err := client.DefinePhone(ctx, list); err != nil {
			log.Fatalf("号码登记失败: %v", err)
		}
		log.Infof("已登记 %d 个号码", len(list))
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=reserve|message|prompt|phones 指定测试模式")
	}
}

func splitPhones(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
