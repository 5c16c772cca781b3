// Package templates holds the scripted Vietnamese replies of the shipping-fee flow.
package templates

import (
	"math/rand/v2"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	NoOrder = "Để em kiểm tra chương trình của cửa hàng xem có freeship cho mình không nha chị/anh."

	Freeship = "Dạ đơn hàng của mình đang được hưởng ưu đãi freeship đó ạ. Em gửi hàng ngay nha chị/anh."

	FirstTime = "Dạ chị/anh ơi, hiện bên em chưa chạy chương trình miễn ship. Nhưng đang có chương trình giảm giá sâu cực kỳ ưu đãi chỉ trong hôm nay, mình đặt ngay kẻo lỡ nhé ạ!"

	AskFreeFirstTime = "Dạ hiện tại bên em chưa áp dụng miễn phí ship cho đơn này ạ. Giá sản phẩm bên em đã là giá ưu đãi nhất rồi, chị/anh ủng hộ em phần phí ship giúp em nha!"

	AskFree = "Dạ mong chị/anh thông cảm giúp em nha. Phí ship của các đơn hàng khá cao, bên em đã hỗ trợ một phần ship và giá sản phẩm tốt nhất có thể rồi ạ. Nhờ mình hỗ trợ phần ship này giúp em nhé, em cảm ơn nhiều!"

	FeeComplaint = "Dạ em hiểu phí ship làm mình chưa hài lòng ạ. Bên em đã ưu tiên giữ giá sản phẩm tốt nhất và hỗ trợ một phần phí vận chuyển rồi, mong chị/anh thông cảm giúp em nha."

	EscalateFreeshipNew = "Dạ phí ship toàn quốc nhà em là khoảng 35k ạ. Vì đây là đơn đầu, bên em xin hỗ trợ miễn phí ship đơn này cho chị/anh nhé. Nếu tiện mình cân thêm sản phẩm nào thì ủng hộ em với nha."

	EscalateFreeshipLoyal = "Dạ phí ship toàn quốc nhà em là khoảng 35k ạ. Vì chị/anh là khách thân, bên em xin hỗ trợ miễn phí ship đơn này cho mình nhé. Nếu tiện mình cân thêm sản phẩm nào thì ủng hộ em với nha."

	SmalltalkFallback = "Dạ vâng ạ! Em cảm ơn mình ạ."
)

// feeAmountVariants each take the formatted fee once.
var feeAmountVariants = []string{
	"Dạ phí ship đơn hiện tại của mình là %sđ ạ.",
	"Dạ đơn của chị/anh có phí vận chuyển là %sđ ạ.",
	"Dạ phí ship cho đơn này là %sđ nha chị/anh.",
}

// Renderer fills the templates that carry values.
type Renderer struct {
	pick    func(n int) int
	printer *message.Printer
}

// New returns a Renderer that chooses fee-amount variants with pick, which
// must return a value in [0, n). A nil pick chooses at random.
func New(pick func(n int) int) *Renderer {
	if pick == nil {
		pick = rand.IntN
	}
	return &Renderer{
		pick:    pick,
		printer: message.NewPrinter(language.English),
	}
}

// FeeAmount answers an explicit fee question, e.g. "... là 35,000đ ạ.".
func (r *Renderer) FeeAmount(fee int) string {
	i := r.pick(len(feeAmountVariants))
	if i < 0 || i >= len(feeAmountVariants) {
		i = 0
	}
	return r.printer.Sprintf(feeAmountVariants[i], r.FormatFee(fee))
}

// FormatFee groups thousands with commas.
func (r *Renderer) FormatFee(fee int) string {
	return r.printer.Sprintf("%d", fee)
}

// Escalation picks the concession template for loyal or new customers.
func Escalation(loyal bool) string {
	if loyal {
		return EscalateFreeshipLoyal
	}
	return EscalateFreeshipNew
}
