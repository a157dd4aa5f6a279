package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var zeroAddress = common.Address{}.Hex()

// New 返回注册了自定义规则的校验器
func New() *validator.Validate {
	v := validator.New()
	register(v)
	return v
}

// Init 给 gin 的 binding 校验器注册同样的自定义规则
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		register(v)
	}
}

func register(v *validator.Validate) {
	// eth_nonzero: 合法的以太坊地址且不是零地址
	_ = v.RegisterValidation("eth_nonzero", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return common.IsHexAddress(s) && !strings.EqualFold(common.HexToAddress(s).Hex(), zeroAddress)
	})
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度至少为 %s", field, param))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度不能超过 %s", field, param))
			case "len":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度必须为 %s", field, param))
			case "lte":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能大于 %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
			case "unique":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 存在重复项", field))
			case "eth_addr", "eth_nonzero":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不是有效的以太坊地址", field))
			case "gtfield":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须晚于 %s", field, param))
			case "gtefield":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能早于 %s", field, param))
			case "hexadecimal":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是十六进制", field))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "请求参数错误"
}
