// Package command はチャットメッセージから発行されるフィード管理コマンドを処理する。
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/rsscast/internal/bot"
	"github.com/hitoshi/rsscast/internal/feed"
	"github.com/hitoshi/rsscast/internal/model"
	"github.com/hitoshi/rsscast/internal/repository"
)

// Event はボットから受信したメッセージイベント。
type Event struct {
	MessageType string
	GroupID     string
	RawMessage  string
}

// FeedService はコマンドから呼び出すフィード操作のインターフェース。
type FeedService interface {
	Create(ctx context.Context, input feed.CreateFeedInput) (*model.Feed, error)
	Get(ctx context.Context, id string) (*model.Feed, error)
	List(ctx context.Context) ([]*model.Feed, error)
	Update(ctx context.Context, id string, input feed.UpdateFeedInput) (*model.Feed, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*model.Feed, error)
	Delete(ctx context.Context, id string) error
	TestFeed(ctx context.Context, feedURL string) (*model.ParsedFeed, error)
}

// CategoryService はコマンドから呼び出す分類操作のインターフェース。
type CategoryService interface {
	Create(ctx context.Context, name, color string) (*model.Category, error)
	List(ctx context.Context) ([]*model.Category, error)
	Delete(ctx context.Context, id string) error
}

// SchedulerControl はコマンドから呼び出すスケジューラ操作のインターフェース。
type SchedulerControl interface {
	CheckUpdate(ctx context.Context, feedID string) model.CheckOutcome
	ActiveFeedIDs() []string
}

// Replier はコマンドへの応答送信のインターフェース。
type Replier interface {
	SendGroupMessage(ctx context.Context, groupID string, segments []bot.MessageSegment) error
}

// Router はコマンドプレフィックス付きメッセージを解析し、各サブコマンドへ振り分ける。
// コマンドごとのクールダウンをグループ単位で管理する。
type Router struct {
	feedService     FeedService
	categoryService CategoryService
	scheduler       SchedulerControl
	destRepo        repository.DestinationRepository
	replier         Replier
	logger          *slog.Logger
	prefix          string
	cooldownSeconds int

	mu        sync.Mutex
	cooldowns map[string]*rate.Limiter
}

// NewRouter はRouterの新しいインスタンスを生成する。
func NewRouter(
	feedService FeedService,
	categoryService CategoryService,
	scheduler SchedulerControl,
	destRepo repository.DestinationRepository,
	replier Replier,
	logger *slog.Logger,
	prefix string,
	cooldownSeconds int,
) *Router {
	if prefix == "" {
		prefix = "#rss"
	}
	return &Router{
		feedService:     feedService,
		categoryService: categoryService,
		scheduler:       scheduler,
		destRepo:        destRepo,
		replier:         replier,
		logger:          logger,
		prefix:          prefix,
		cooldownSeconds: cooldownSeconds,
		cooldowns:       make(map[string]*rate.Limiter),
	}
}

// HandleMessage は受信メッセージを処理する。
// グループメッセージ以外、無効化されたグループ、プレフィックス不一致は無視する。
func (r *Router) HandleMessage(ctx context.Context, event Event) {
	if event.MessageType != "group" || event.GroupID == "" {
		return
	}

	if !r.groupEnabled(ctx, event.GroupID) {
		return
	}

	raw := strings.TrimSpace(event.RawMessage)
	if !strings.HasPrefix(raw, r.prefix) {
		return
	}

	args := strings.Fields(strings.TrimSpace(strings.TrimPrefix(raw, r.prefix)))
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
		args = args[1:]
	}

	r.logger.Info("コマンドを受信しました",
		slog.String("group_id", event.GroupID),
		slog.String("subcommand", sub),
	)

	switch sub {
	case "help", "?":
		r.reply(ctx, event.GroupID, r.helpText())
	case "add":
		if !r.passCooldown(ctx, event.GroupID, "add") {
			return
		}
		r.handleAdd(ctx, event.GroupID, args)
	case "del", "delete", "remove":
		r.handleDelete(ctx, event.GroupID, args)
	case "list", "ls":
		r.handleList(ctx, event.GroupID)
	case "set":
		r.handleSet(ctx, event.GroupID, args)
	case "test":
		if !r.passCooldown(ctx, event.GroupID, "test") {
			return
		}
		r.handleTest(ctx, event.GroupID, args)
	case "enable":
		r.handleEnable(ctx, event.GroupID, args, true)
	case "disable":
		r.handleEnable(ctx, event.GroupID, args, false)
	case "check":
		if !r.passCooldown(ctx, event.GroupID, "check") {
			return
		}
		r.handleCheck(ctx, event.GroupID, args)
	case "status":
		r.handleStatus(ctx, event.GroupID)
	case "category", "cat":
		r.handleCategory(ctx, event.GroupID, args)
	default:
		r.reply(ctx, event.GroupID, fmt.Sprintf("%s help でコマンド一覧を表示します", r.prefix))
	}
}

// groupEnabled は配信先グループが有効かを判定する。
// 設定レコードが存在しないグループは有効として扱う。
func (r *Router) groupEnabled(ctx context.Context, groupID string) bool {
	dest, err := r.destRepo.FindByID(ctx, groupID)
	if err != nil {
		r.logger.Error("配信先設定の取得に失敗しました",
			slog.String("destination_id", groupID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if dest == nil {
		return true
	}
	return dest.Enabled
}

// passCooldown はグループとコマンドの組ごとのクールダウンを判定する。
// クールダウン中は残り秒数を応答してfalseを返す。
func (r *Router) passCooldown(ctx context.Context, groupID, cmd string) bool {
	if r.cooldownSeconds <= 0 {
		return true
	}

	limiter := r.cooldownLimiter(groupID + ":" + cmd)

	res := limiter.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		remaining := int(math.Ceil(delay.Seconds()))
		r.reply(ctx, groupID, fmt.Sprintf("%d 秒後に再度お試しください", remaining))
		return false
	}
	return true
}

func (r *Router) cooldownLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.cooldowns[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Duration(r.cooldownSeconds)*time.Second), 1)
		r.cooldowns[key] = limiter
	}
	return limiter
}

func (r *Router) helpText() string {
	p := r.prefix
	lines := []string{
		fmt.Sprintf("【%s ヘルプ】", p),
		fmt.Sprintf("%s add <url> [名前] - 購読を追加", p),
		fmt.Sprintf("%s del <id> - 購読を削除", p),
		fmt.Sprintf("%s list - 購読一覧", p),
		fmt.Sprintf("%s set <id> <key> <value> - 設定変更 (name/interval/mode/destinations)", p),
		fmt.Sprintf("%s test <id> - フィード取得テスト", p),
		fmt.Sprintf("%s enable <id> - 購読を有効化", p),
		fmt.Sprintf("%s disable <id> - 購読を無効化", p),
		fmt.Sprintf("%s check <id> - 手動で更新チェック", p),
		fmt.Sprintf("%s status - 稼働状況", p),
		fmt.Sprintf("%s cat add <名前> - 分類を追加", p),
		fmt.Sprintf("%s cat del <id> - 分類を削除", p),
		fmt.Sprintf("%s cat list - 分類一覧", p),
		fmt.Sprintf("%s cat set <購読id> <分類id|none> - 購読の分類を設定", p),
	}
	return strings.Join(lines, "\n")
}

func (r *Router) handleAdd(ctx context.Context, groupID string, args []string) {
	if len(args) < 1 {
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s add <url> [名前]", r.prefix))
		return
	}

	input := feed.CreateFeedInput{
		URL:          args[0],
		Name:         strings.Join(args[1:], " "),
		Destinations: []string{groupID},
	}

	f, err := r.feedService.Create(ctx, input)
	if err != nil {
		r.reply(ctx, groupID, "追加に失敗しました: "+errorText(err))
		return
	}

	r.reply(ctx, groupID, fmt.Sprintf("購読を追加しました: %s\nURL: %s\nID: %s", f.Name, f.URL, f.ID))
}

func (r *Router) handleDelete(ctx context.Context, groupID string, args []string) {
	if len(args) < 1 {
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s del <id>", r.prefix))
		return
	}

	f, err := r.feedService.Get(ctx, args[0])
	if err != nil {
		r.reply(ctx, groupID, errorText(err))
		return
	}

	if err := r.feedService.Delete(ctx, f.ID); err != nil {
		r.reply(ctx, groupID, "削除に失敗しました: "+errorText(err))
		return
	}

	r.reply(ctx, groupID, "購読を削除しました: "+f.Name)
}

func (r *Router) handleList(ctx context.Context, groupID string) {
	feeds, err := r.feedService.List(ctx)
	if err != nil {
		r.reply(ctx, groupID, "一覧の取得に失敗しました: "+errorText(err))
		return
	}

	if len(feeds) == 0 {
		r.reply(ctx, groupID, fmt.Sprintf("購読はありません。%s add <url> で追加できます", r.prefix))
		return
	}

	lines := []string{"【購読一覧】"}
	for _, f := range feeds {
		status := "✅"
		if !f.Enabled {
			status = "❌"
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s)", status, f.Name, f.ID))
		lines = append(lines, fmt.Sprintf("   方式: %s | 配信先: %d件 | 間隔: %d分",
			deliveryModeLabel(f.DeliveryMode), len(f.Destinations), f.UpdateIntervalMinutes))
	}
	r.reply(ctx, groupID, strings.Join(lines, "\n"))
}

func (r *Router) handleSet(ctx context.Context, groupID string, args []string) {
	if len(args) < 3 {
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s set <id> <key> <value>\nkey: name/interval/mode/destinations", r.prefix))
		return
	}

	feedID := args[0]
	key := args[1]
	value := strings.Join(args[2:], " ")

	var input feed.UpdateFeedInput
	switch key {
	case "name":
		input.Name = &value
	case "interval":
		minutes, err := strconv.Atoi(value)
		if err != nil {
			r.reply(ctx, groupID, "間隔は分単位の整数で指定してください")
			return
		}
		input.UpdateIntervalMinutes = &minutes
	case "mode":
		input.DeliveryMode = &value
	case "destinations":
		dests := splitDestinations(value)
		input.Destinations = &dests
	default:
		r.reply(ctx, groupID, "未知の設定項目です: "+key)
		return
	}

	f, err := r.feedService.Update(ctx, feedID, input)
	if err != nil {
		r.reply(ctx, groupID, "更新に失敗しました: "+errorText(err))
		return
	}

	r.reply(ctx, groupID, fmt.Sprintf("%s の %s を更新しました", f.Name, key))
}

func (r *Router) handleTest(ctx context.Context, groupID string, args []string) {
	if len(args) < 1 {
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s test <id>", r.prefix))
		return
	}

	f, err := r.feedService.Get(ctx, args[0])
	if err != nil {
		r.reply(ctx, groupID, errorText(err))
		return
	}

	parsed, err := r.feedService.TestFeed(ctx, f.URL)
	if err != nil {
		r.reply(ctx, groupID, fmt.Sprintf("テスト失敗: %s\n%s", f.Name, errorText(err)))
		return
	}

	if len(parsed.Items) == 0 {
		r.reply(ctx, groupID, "取得成功、ただし記事はありません")
		return
	}

	lines := []string{fmt.Sprintf("取得成功: %s (%d件)", f.Name, len(parsed.Items))}
	for i, item := range parsed.Items {
		if i >= 3 {
			break
		}
		lines = append(lines, "・"+item.Title)
	}
	r.reply(ctx, groupID, strings.Join(lines, "\n"))
}

func (r *Router) handleEnable(ctx context.Context, groupID string, args []string, enabled bool) {
	verb := "enable"
	label := "有効化"
	if !enabled {
		verb = "disable"
		label = "無効化"
	}

	if len(args) < 1 {
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s %s <id>", r.prefix, verb))
		return
	}

	f, err := r.feedService.SetEnabled(ctx, args[0], enabled)
	if err != nil {
		r.reply(ctx, groupID, errorText(err))
		return
	}

	r.reply(ctx, groupID, fmt.Sprintf("購読を%sしました: %s", label, f.Name))
}

func (r *Router) handleCheck(ctx context.Context, groupID string, args []string) {
	if len(args) < 1 {
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s check <id>", r.prefix))
		return
	}

	f, err := r.feedService.Get(ctx, args[0])
	if err != nil {
		r.reply(ctx, groupID, errorText(err))
		return
	}

	outcome := r.scheduler.CheckUpdate(ctx, f.ID)

	if len(outcome.NewItems) == 0 {
		r.reply(ctx, groupID, f.Name+" に更新はありません")
		return
	}
	r.reply(ctx, groupID, fmt.Sprintf("%s の更新 %d件を配信しました", f.Name, len(outcome.NewItems)))
}

func (r *Router) handleStatus(ctx context.Context, groupID string) {
	feeds, err := r.feedService.List(ctx)
	if err != nil {
		r.reply(ctx, groupID, "状態の取得に失敗しました: "+errorText(err))
		return
	}

	enabled := 0
	for _, f := range feeds {
		if f.Enabled {
			enabled++
		}
	}

	lines := []string{
		"【購読状態】",
		fmt.Sprintf("購読総数: %d", len(feeds)),
		fmt.Sprintf("有効: %d", enabled),
		fmt.Sprintf("稼働タイマー: %d", len(r.scheduler.ActiveFeedIDs())),
	}
	r.reply(ctx, groupID, strings.Join(lines, "\n"))
}

func (r *Router) handleCategory(ctx context.Context, groupID string, args []string) {
	action := ""
	if len(args) > 0 {
		action = strings.ToLower(args[0])
		args = args[1:]
	}

	switch action {
	case "add":
		if len(args) < 1 {
			r.reply(ctx, groupID, fmt.Sprintf("用法: %s cat add <名前>", r.prefix))
			return
		}
		name := strings.Join(args, " ")
		category, err := r.categoryService.Create(ctx, name, "")
		if err != nil {
			r.reply(ctx, groupID, "分類の追加に失敗しました: "+errorText(err))
			return
		}
		r.reply(ctx, groupID, fmt.Sprintf("分類を追加しました: %s (%s)", category.Name, category.ID))

	case "del", "delete":
		if len(args) < 1 {
			r.reply(ctx, groupID, fmt.Sprintf("用法: %s cat del <id>", r.prefix))
			return
		}
		if err := r.categoryService.Delete(ctx, args[0]); err != nil {
			r.reply(ctx, groupID, errorText(err))
			return
		}
		r.reply(ctx, groupID, "分類を削除しました")

	case "list", "ls":
		categories, err := r.categoryService.List(ctx)
		if err != nil {
			r.reply(ctx, groupID, "分類一覧の取得に失敗しました: "+errorText(err))
			return
		}
		if len(categories) == 0 {
			r.reply(ctx, groupID, "分類はありません")
			return
		}
		lines := []string{"【分類一覧】"}
		for _, c := range categories {
			lines = append(lines, fmt.Sprintf("・%s (%s)", c.Name, c.ID))
		}
		r.reply(ctx, groupID, strings.Join(lines, "\n"))

	case "set":
		if len(args) < 2 {
			r.reply(ctx, groupID, fmt.Sprintf("用法: %s cat set <購読id> <分類id|none>", r.prefix))
			return
		}
		categoryID := args[1]
		if categoryID == "none" {
			categoryID = ""
		}
		f, err := r.feedService.Update(ctx, args[0], feed.UpdateFeedInput{CategoryID: &categoryID})
		if err != nil {
			r.reply(ctx, groupID, errorText(err))
			return
		}
		r.reply(ctx, groupID, f.Name+" の分類を設定しました")

	default:
		r.reply(ctx, groupID, fmt.Sprintf("用法: %s cat <add|del|list|set>", r.prefix))
	}
}

// reply はグループへテキストメッセージを送信する。送信失敗はログのみ。
func (r *Router) reply(ctx context.Context, groupID, text string) {
	segments := []bot.MessageSegment{bot.TextSegment(text)}
	if err := r.replier.SendGroupMessage(ctx, groupID, segments); err != nil {
		r.logger.Error("コマンド応答の送信に失敗しました",
			slog.String("group_id", groupID),
			slog.String("error", err.Error()),
		)
	}
}

// errorText はユーザーへ提示するエラーメッセージを返す。
// APIエラー以外は内部情報を漏らさないよう定型文にする。
func errorText(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "内部エラーが発生しました"
}

func deliveryModeLabel(mode model.DeliveryMode) string {
	switch mode {
	case model.DeliveryModeSingle:
		return "単条"
	case model.DeliveryModeForward:
		return "まとめ"
	case model.DeliveryModeImage:
		return "画像"
	default:
		return string(mode)
	}
}

func splitDestinations(value string) []string {
	var dests []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			dests = append(dests, trimmed)
		}
	}
	return dests
}
