// Package feed はフィード購読のドメインロジックを提供する。
package feed

import (
	"sort"

	"github.com/hitoshi/rsscast/internal/model"
)

// Detect は前回ウォーターマークとパース済み記事から新着記事を判定する。
// 純粋関数であり、入出力以外に副作用を持たない。
//
// 判定規則:
//   - previousWatermarkが0（初回チェック）の場合、全記事を新着とする。
//     公開日時のない記事（PublishedAt==0）もこのときだけ含まれる。
//   - それ以外は PublishedAt > previousWatermark の記事のみを新着とする。
//
// 新着記事は公開時刻の降順に並べ替えられる。同時刻の記事は入力中の
// 相対順を維持する。AdvancedWatermarkは前回値と新着中の最大公開時刻の
// 大きい方で、決して後退しない。
func Detect(previousWatermark int64, items []model.FeedItem) model.CheckOutcome {
	var newItems []model.FeedItem
	for _, item := range items {
		if previousWatermark == 0 || item.PublishedAt > previousWatermark {
			newItems = append(newItems, item)
		}
	}

	sort.SliceStable(newItems, func(i, j int) bool {
		return newItems[i].PublishedAt > newItems[j].PublishedAt
	})

	advanced := previousWatermark
	for _, item := range newItems {
		if item.PublishedAt > advanced {
			advanced = item.PublishedAt
		}
	}

	return model.CheckOutcome{
		NewItems:          newItems,
		AdvancedWatermark: advanced,
	}
}
