// Package taxonomy classifies garment names into the fixed category set
// used across otfit. Classification is a total function over arbitrary
// strings: keyword sets are evaluated in strict priority order and the
// first matching set wins, so a name containing both a shoe term and an
// apparel term always resolves to Shoes.
package taxonomy

import "strings"

// Category is a garment category.
type Category string

const (
	Upper     Category = "Upper"
	Lower     Category = "Lower"
	Dress     Category = "Dress"
	Shoes     Category = "Shoes"
	Accessory Category = "Accessory"
	Unknown   Category = "Unknown"
)

// Keyword sets in evaluation priority order: Shoes, Accessory, Dress,
// Lower, Upper. The ordering resolves ambiguous names predictably in
// favour of footwear, then accessories.
var (
	shoesKeywords = []string{
		"shoes", "sneakers", "boots", "sandals", "loafers", "heels", "slippers",
		"신발", "운동화", "스니커즈", "부츠", "샌들", "로퍼", "힐", "슬리퍼",
		"플랫슈즈", "구두",
	}

	accessoryKeywords = []string{
		"bag", "purse", "wallet", "belt", "hat", "cap", "scarf", "necklace",
		"earrings", "bracelet", "watch", "sunglasses", "glasses", "ring", "jewelry",
		"가방", "크로스백", "백팩", "토트백", "숄더백", "클러치", "에코백",
		"지갑", "벨트", "모자", "스카프", "목걸이", "귀걸이", "팔찌",
		"시계", "선글라스", "안경", "반지", "쥬얼리", "악세서리", "액세서리",
	}

	dressKeywords = []string{
		"dress", "gown", "one-piece", "onepiece",
		"드레스", "원피스", "가운", "롱원피스", "미니원피스", "니트원피스",
	}

	lowerKeywords = []string{
		"pants", "jeans", "skirt", "shorts", "leggings", "slacks",
		"팬츠", "바지", "진", "청바지", "스커트", "치마", "레깅스", "슬랙스",
		"숏팬츠", "반바지", "쇼츠", "와이드팬츠", "조거팬츠", "카고팬츠", "데님",
	}

	upperKeywords = []string{
		"shirt", "blouse", "top", "jacket", "coat", "cardigan", "sweater",
		"hoodie", "sweatshirt", "t-shirt", "tee",
		"셔츠", "블라우스", "탑", "자켓", "코트", "가디건", "스웨터", "후드",
		"맨투맨", "티셔츠", "니트", "점퍼", "패딩", "집업", "베스트", "조끼",
		"크롭", "크롭티",
	}
)

// Classify maps a product name to a Category. Case-insensitive substring
// match; no match (including the empty string) yields Unknown.
func Classify(name string) Category {
	n := strings.ToLower(name)
	switch {
	case containsAny(n, shoesKeywords):
		return Shoes
	case containsAny(n, accessoryKeywords):
		return Accessory
	case containsAny(n, dressKeywords):
		return Dress
	case containsAny(n, lowerKeywords):
		return Lower
	case containsAny(n, upperKeywords):
		return Upper
	}
	return Unknown
}

func containsAny(name string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// Fittable reports whether a category can be sent to a try-on backend.
// Only Upper, Lower and Dress garments have a fitting model.
func Fittable(c Category) bool {
	return c == Upper || c == Lower || c == Dress
}

// MaskOffset returns the display mask offset hint for a category:
// 100 for Lower, 0 otherwise. It is derived, never set independently.
func MaskOffset(c Category) int {
	if c == Lower {
		return 100
	}
	return 0
}

// localized maps the Korean edit-surface labels onto categories.
var localized = map[string]Category{
	"상의":  Upper,
	"하의":  Lower,
	"원피스": Dress,
}

// Parse resolves a category label. It accepts canonical Category values
// and the localized labels used by the product edit surface; anything
// else yields Unknown.
func Parse(label string) Category {
	switch Category(label) {
	case Upper, Lower, Dress, Shoes, Accessory:
		return Category(label)
	}
	if c, ok := localized[label]; ok {
		return c
	}
	return Unknown
}
