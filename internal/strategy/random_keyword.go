package strategy

import (
	"math/rand"

	"github.com/otodoki/otodoki/internal/domain"
)

// searchTerms is the static keyword pool for the random strategy.
var searchTerms = []string{
	// J-POP/Rock keywords
	"J-POP", "ロック", "バンド", "ギター", "ライブ", "フェス", "アイドル", "アニメ", "ゲーム", "映画",
	"さくら", "ひまわり", "ありがとう", "ごめんね", "大好き", "さよなら", "またね",
	"夢", "希望", "未来", "青春", "旅立ち", "応援歌", "失恋", "片想い",
	"夏", "海", "花火", "祭り", "冬", "雪", "クリスマス", "春", "秋",
	"東京", "大阪", "物語", "キセキ", "運命", "約束",
	"空", "星", "夜空", "雨", "虹", "風", "光", "闇",
	"君", "僕", "私", "あなた",
	"涙", "笑顔", "心", "声", "歌", "メロディ", "リズム",
	"ダンス", "パーティー", "クラブ",

	// English keywords
	"Love", "Dream", "Star", "Sky", "Night", "Summer", "Winter", "Spring", "Fall",
	"Happy", "Sad", "Smile", "Tears", "Heart", "Soul", "Life", "Time",
	"Rock", "Pop", "Dance", "Electronic", "Hip-Hop", "R&B", "Jazz", "Classic",
	"Party", "Live", "Fes", "Idol", "Anime", "Game", "Movie",
	"Sun", "Moon", "Rain", "Wind", "Fire", "Water", "Earth",
	"Hello", "Goodbye", "Sorry", "Thank you",
	"You", "Me", "We",
	"Future", "Past", "Destiny", "Miracle", "Promise",
	"Story", "Journey", "Adventure",
	"City", "Tokyo", "Osaka",
}

// RandomKeyword picks one term uniformly from the static pool.
type RandomKeyword struct{}

// NewRandomKeyword constructs the random keyword strategy.
func NewRandomKeyword() *RandomKeyword { return &RandomKeyword{} }

// Name implements domain.SearchStrategy.
func (s *RandomKeyword) Name() string { return NameRandomKeyword }

// GenerateParams implements domain.SearchStrategy.
func (s *RandomKeyword) GenerateParams(_ domain.Context) (domain.SearchParams, error) {
	term := searchTerms[rand.Intn(len(searchTerms))] //nolint:gosec // Weak random is fine for term selection.
	return domain.SearchParams{Term: term}, nil
}
