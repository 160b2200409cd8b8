// Package intent classifies each user turn as a structured-data lookup or a
// semantic-knowledge question.
package intent

import (
	"context"
	"strings"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/logger"
)

// Route is the classifier's binary decision for a turn.
type Route string

const (
	RouteStructured Route = "structured"
	RouteSemantic   Route = "semantic"
)

// decisionPrompt constrains the model to a bare YES/NO answer. YES means the
// question needs the declaration dataset; NO means general knowledge.
const decisionPrompt = "Bạn là trợ lý AI chuyên phân tích truy vấn của người dùng. " +
	"Xác định xem truy vấn sau có cần tra cứu dữ liệu tờ khai hải quan hay không. " +
	"Tra cứu dữ liệu khi người dùng hỏi hoặc tra cứu thông tin liên quan đến các trường sau:" +
	"['Mã HS', 'Tên hàng hóa', 'Nhà cung cấp', 'Xuất xứ', 'Loại hình', 'Tình trạng(Nhập/Xuất)', 'Điều kiện giao hàng', 'Các loại thuế']. " +
	"Nếu câu hỏi không liên quan đến các trường trên, không tra cứu dữ liệu. " +
	"Câu hỏi về thông tin/kết quả phân tích phân loại của hàng hóa/mã hàng hóa không cần tra cứu dữ liệu. " +
	"\n\n" +
	"VÍ DỤ CÂU HỎI CẦN TRA CỨU DỮ LIỆU (YES):\n" +
	"- 'Mã HS 8471 gồm những sản phẩm nào?'\n" +
	"- 'Tìm tất cả sản phẩm có xuất xứ từ Việt Nam'\n" +
	"- 'Liệt kê các mặt hàng nhập khẩu trong tháng 6/2023'\n" +
	"- 'Tìm kiếm sản phẩm có điều kiện giao hàng FOB'\n" +
	"- 'lông vịt từ nhà cung cấp global trạng thái nhập'\n" +
	"\n" +
	"VÍ DỤ CÂU HỎI KHÔNG TRA CỨU DỮ LIỆU (NO):\n" +
	"- 'HS code là gì?'\n" +
	"- 'Mã HS code được phân loại như thế nào?'\n" +
	"- 'Quy trình xin giấy phép xuất khẩu?'\n" +
	"- 'kết quả phân tích phân loại cho mã 8471'\n" +
	"- 'So sánh điều kiện giao hàng CIF và FOB?'\n" +
	"\n" +
	"Trả lời chỉ là 'YES' nếu cần tra cứu dữ liệu, hoặc 'NO' nếu không cần. " +
	"Chỉ trả lời YES hoặc NO, không trả lời gì thêm."

// Completer is the text-completion surface the classifier needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Classifier routes turns through the external decision model.
type Classifier struct {
	completer Completer
	logger    logger.Logger
}

func New(completer Completer, log logger.Logger) *Classifier {
	return &Classifier{
		completer: completer,
		logger:    log.WithFields(map[string]interface{}{"component": "intent"}),
	}
}

// Classify routes a turn. Anything other than a clean YES or NO from the
// model fails the turn closed; no branch is guessed.
func (c *Classifier) Classify(ctx context.Context, userText string) (Route, error) {
	reply, err := c.completer.Complete(ctx, decisionPrompt, userText)
	if err != nil {
		return "", stderrors.NewUpstreamUnavailableError("decision model", err)
	}

	decision := strings.ToUpper(strings.TrimSpace(reply))
	c.logger.Debug("intent decision", map[string]interface{}{"decision": decision})

	switch decision {
	case "YES":
		return RouteStructured, nil
	case "NO":
		return RouteSemantic, nil
	default:
		return "", stderrors.NewInvalidDecisionOutputError(decision)
	}
}
