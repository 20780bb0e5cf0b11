package notify

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/autopool-notifier/pkg/config"
	"github.com/numbergroup/autopool-notifier/pkg/contract"
	"github.com/numbergroup/autopool-notifier/pkg/rpcpool"
)

// StatsFunc reads the pool contract's aggregate statistics.
type StatsFunc func(ctx context.Context) (contract.PoolStats, error)

// ExecutorStats reads getContractStats through the failover executor.
func ExecutorStats(exec *rpcpool.Executor, address common.Address) StatsFunc {
	return func(ctx context.Context) (contract.PoolStats, error) {
		return rpcpool.Run(ctx, exec, func(ctx context.Context, ep *rpcpool.Endpoint) (contract.PoolStats, error) {
			return contract.ReadStats(ctx, ep.Client, address)
		})
	}
}

type Formatter struct {
	settings config.Notifications
	contract common.Address
	stats    StatsFunc
	image    string
	log      logrus.Ext1FieldLogger
}

func NewFormatter(conf *config.Config, stats StatsFunc) *Formatter {
	f := &Formatter{
		settings: conf.Notifications,
		contract: conf.ContractAddress(),
		stats:    stats,
		log:      conf.Log.WithField("name", "notify::Formatter"),
	}
	if path := conf.Notifications.ImagePath; path != "" {
		if _, err := os.Stat(path); err != nil {
			f.log.WithError(err).WithField("path", path).Warn("banner image not found, sending text only")
		} else {
			f.image = path
		}
	}
	return f
}

// Format renders ev. ok is false for kinds that are never announced.
func (f *Formatter) Format(ctx context.Context, ev contract.Event) (msg Message, ok bool) {
	var b strings.Builder
	switch ev.Kind {
	case contract.KindJoin:
		fmt.Fprintf(&b, ":bust_in_silhouette: *New Member Joined in %s*\n", f.settings.ProjectName)
		fmt.Fprintf(&b, "%s\n\n", f.settings.Tagline)
		fmt.Fprintf(&b, ":money_with_wings: Join: %s %s\n\n", f.settings.JoinFee, f.settings.Currency)
	case contract.KindRejoin:
		fmt.Fprintf(&b, ":arrows_counterclockwise: *Member Rejoined in %s*\n", f.settings.ProjectName)
		fmt.Fprintf(&b, "%s\n\n", f.settings.Tagline)
		fmt.Fprintf(&b, ":money_with_wings: Rejoin: %s %s\n", f.settings.RejoinFee, f.settings.Currency)
		fmt.Fprintf(&b, ":money_with_wings: Total Deposited: %s %s\n\n", f.totalDeposited(ctx), f.settings.Currency)
	default:
		return Message{}, false
	}
	b.WriteString(f.links(ev))
	return Message{Text: b.String(), Image: f.image}, true
}

func (f *Formatter) totalDeposited(ctx context.Context) string {
	if f.stats == nil {
		return f.settings.DepositFallback
	}
	stats, err := f.stats(ctx)
	if err != nil {
		f.log.WithError(err).Warn("could not read contract stats, using fallback total")
		return f.settings.DepositFallback
	}
	return contract.FormatUnits(stats.TotalFundsReceived, contract.TokenDecimals, 0)
}

func (f *Formatter) links(ev contract.Event) string {
	explorer := strings.TrimRight(f.settings.ExplorerURL, "/")
	links := []string{
		fmt.Sprintf("<%s/tx/%s|TX>", explorer, ev.TxHash.Hex()),
		fmt.Sprintf("<%s/address/%s|User>", explorer, ev.User.Hex()),
	}
	if f.settings.WebsiteURL != "" {
		links = append(links, fmt.Sprintf("<%s|Website>", f.settings.WebsiteURL))
	}
	links = append(links, fmt.Sprintf("<%s/address/%s|Contract>", explorer, f.contract.Hex()))
	return strings.Join(links, " | ")
}
