package intent

import (
	"fmt"
	"strings"
)

func classificationPrompt(text string) string {
	return strings.Join([]string{
		"Bạn là bộ phân loại ý định về phí ship của một cửa hàng online. Phân loại câu của khách vào một nhãn:",
		"- fee_question: hỏi phí ship (bao nhiêu, mất bao nhiêu, tính như nào)",
		"- ask_freeship: yêu cầu miễn hoặc giảm phí ship",
		"- fee_complaint: phàn nàn phí ship đắt, cao",
		"- smalltalk: chào hỏi, xã giao, đồng ý, cảm ơn, không liên quan phí",
		`Chỉ trả lời JSON: {"intent":"fee_question|ask_freeship|fee_complaint|smalltalk","confidence":0.0,` +
			`"signals":{"wants_free":false,"about_fee_amount":false,"cancel_threat":false,"is_complaint":false}}`,
		fmt.Sprintf("Câu: %q", text),
	}, "\n")
}

func smalltalkPrompt(text string) string {
	return strings.Join([]string{
		"Bạn là trợ lý chăm sóc khách hàng thân thiện. Khách vừa nói một câu xã giao.",
		"Hãy đáp ngắn gọn (tối đa 1-2 câu), lịch sự, bằng tiếng Việt, không hỏi thêm.",
		fmt.Sprintf("Khách: %q", text),
		`Chỉ trả lời JSON: {"reply":"..."}`,
	}, "\n")
}
