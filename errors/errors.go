package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

/* ========================================================================
 * Errors - 租户与并发控制错误
 * ========================================================================
 * 职责: 稳定的业务错误码，以及到 HTTP / gRPC 的统一映射
 * 映射: 每个错误码在 codeTable 中登记一次（HTTP 状态码、gRPC 码、名称）
 * ======================================================================== */

// ErrorCode 业务错误码
type ErrorCode int

const (
	ErrCodeUnknown          ErrorCode = 1000
	ErrCodeInvalidArgument  ErrorCode = 1001
	ErrCodeNotFound         ErrorCode = 1002
	ErrCodePermissionDenied ErrorCode = 1004
	ErrCodeUnauthenticated  ErrorCode = 1005
	ErrCodeInternal         ErrorCode = 1006

	ErrCodeTenantContextMissing ErrorCode = 2001 // fail closed
	ErrCodeNoTenantAssociation  ErrorCode = 2002
	ErrCodeTenantInactive       ErrorCode = 2003
	ErrCodeTenantSuspended      ErrorCode = 2004
	ErrCodeTenantIDRequired     ErrorCode = 2005 // 特权用户未给出目标租户
	ErrCodePreconditionRequired ErrorCode = 2006 // 写操作未携带版本号
	ErrCodeVersionConflict      ErrorCode = 2007
)

// VersionConflict 携带的 detail 键
const (
	DetailResourceID     = "resource_id"
	DetailClientVersion  = "client_version"
	DetailCurrentVersion = "current_version"
)

// grpcDomain ErrorInfo.Domain
const grpcDomain = "tenancy"

type mapping struct {
	name string
	http int
	grpc codes.Code
}

var codeTable = map[ErrorCode]mapping{
	ErrCodeUnknown:              {"UNKNOWN", 500, codes.Unknown},
	ErrCodeInvalidArgument:      {"INVALID_ARGUMENT", 400, codes.InvalidArgument},
	ErrCodeNotFound:             {"NOT_FOUND", 404, codes.NotFound},
	ErrCodePermissionDenied:     {"PERMISSION_DENIED", 403, codes.PermissionDenied},
	ErrCodeUnauthenticated:      {"UNAUTHENTICATED", 401, codes.Unauthenticated},
	ErrCodeInternal:             {"INTERNAL", 500, codes.Internal},
	ErrCodeTenantContextMissing: {"TENANT_CONTEXT_MISSING", 500, codes.Internal},
	ErrCodeNoTenantAssociation:  {"NO_TENANT_ASSOCIATION", 403, codes.PermissionDenied},
	ErrCodeTenantInactive:       {"TENANT_INACTIVE", 403, codes.PermissionDenied},
	ErrCodeTenantSuspended:      {"TENANT_SUSPENDED", 403, codes.PermissionDenied},
	ErrCodeTenantIDRequired:     {"TENANT_ID_REQUIRED", 400, codes.InvalidArgument},
	ErrCodePreconditionRequired: {"PRECONDITION_REQUIRED", 428, codes.FailedPrecondition},
	ErrCodeVersionConflict:      {"VERSION_CONFLICT", 409, codes.Aborted},
}

func lookup(code ErrorCode) mapping {
	if m, ok := codeTable[code]; ok {
		return m
	}
	return codeTable[ErrCodeUnknown]
}

// String 错误码名称，如 VERSION_CONFLICT
func (c ErrorCode) String() string {
	if m, ok := codeTable[c]; ok {
		return m.name
	}
	return strconv.Itoa(int(c))
}

// BizError 业务错误
type BizError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]any
}

func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is 按错误码匹配，预定义错误与其派生副本互相匹配
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	return ok && e.Code == t.Code
}

func (e *BizError) Unwrap() error { return e.Cause }

// WithDetail 返回带附加字段的副本
func (e *BizError) WithDetail(key string, value any) *BizError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New 创建业务错误
func New(code ErrorCode, message string) *BizError {
	return &BizError{Code: code, Message: message}
}

// Wrap 以 cause 为底层错误创建业务错误
func Wrap(code ErrorCode, message string, cause error) *BizError {
	return &BizError{Code: code, Message: message, Cause: cause}
}

// NewVersionConflict 版本冲突，details 中同时给出客户端版本与当前版本
func NewVersionConflict(resourceID string, clientVersion, currentVersion int64) *BizError {
	return &BizError{
		Code: ErrCodeVersionConflict,
		Message: fmt.Sprintf("version conflict on %s: client version %d, current version %d",
			resourceID, clientVersion, currentVersion),
		Details: map[string]any{
			DetailResourceID:     resourceID,
			DetailClientVersion:  clientVersion,
			DetailCurrentVersion: currentVersion,
		},
	}
}

// ConflictVersions 取出版本冲突双方的版本号
func ConflictVersions(err error) (client, current int64, ok bool) {
	bizErr, isBiz := AsBizError(err)
	if !isBiz || bizErr.Code != ErrCodeVersionConflict {
		return 0, 0, false
	}
	client, ok1 := bizErr.Details[DetailClientVersion].(int64)
	current, ok2 := bizErr.Details[DetailCurrentVersion].(int64)
	return client, current, ok1 && ok2
}

// 预定义错误，配合 errors.Is 使用
var (
	ErrInvalidArgument  = New(ErrCodeInvalidArgument, "invalid argument")
	ErrNotFound         = New(ErrCodeNotFound, "resource not found")
	ErrPermissionDenied = New(ErrCodePermissionDenied, "permission denied")
	ErrUnauthenticated  = New(ErrCodeUnauthenticated, "unauthenticated")

	ErrTenantContextMissing = New(ErrCodeTenantContextMissing, "tenant context missing")
	ErrNoTenantAssociation  = New(ErrCodeNoTenantAssociation, "actor is not associated with any tenant")
	ErrTenantInactive       = New(ErrCodeTenantInactive, "tenant is not active")
	ErrTenantSuspended      = New(ErrCodeTenantSuspended, "tenant is suspended")
	ErrTenantIDRequired     = New(ErrCodeTenantIDRequired, "target tenant id is required for privileged actors")
	ErrPreconditionRequired = New(ErrCodePreconditionRequired, "version precondition required")
)

// Is errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Code 返回错误链上第一个 BizError 的错误码，没有则为 ErrCodeUnknown
func Code(err error) ErrorCode {
	if bizErr, ok := AsBizError(err); ok {
		return bizErr.Code
	}
	return ErrCodeUnknown
}

func IsNotFound(err error) bool { return Code(err) == ErrCodeNotFound }

func IsVersionConflict(err error) bool { return Code(err) == ErrCodeVersionConflict }

// AsBizError 取出错误链上的 BizError
func AsBizError(err error) (*BizError, bool) {
	if err == nil {
		return nil, false
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr, true
	}
	return nil, false
}

/* ========================================================================
 * gRPC
 * ======================================================================== */

// ToGRPCError 转为 gRPC status；错误码与 details 放入 ErrorInfo
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	bizErr, ok := AsBizError(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}

	m := lookup(bizErr.Code)
	st := status.New(m.grpc, bizErr.Message)
	info := &errdetails.ErrorInfo{
		Reason:   bizErr.Code.String(),
		Domain:   grpcDomain,
		Metadata: map[string]string{"code": strconv.Itoa(int(bizErr.Code))},
	}
	for k, v := range bizErr.Details {
		info.Metadata[k] = fmt.Sprint(v)
	}
	if withInfo, derr := st.WithDetails(info); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// FromGRPCError 还原 ToGRPCError 的结果；缺少 ErrorInfo 时按 gRPC 码粗略对应
func FromGRPCError(err error) *BizError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return Wrap(ErrCodeUnknown, "unknown error", err)
	}

	for _, d := range st.Details() {
		info, isInfo := d.(*errdetails.ErrorInfo)
		if !isInfo || info.GetDomain() != grpcDomain {
			continue
		}
		n, convErr := strconv.Atoi(info.GetMetadata()["code"])
		if convErr != nil {
			break
		}
		bizErr := New(ErrorCode(n), st.Message())
		for k, v := range info.GetMetadata() {
			if k == "code" {
				continue
			}
			bizErr = bizErr.WithDetail(k, v)
		}
		return bizErr
	}

	for code, m := range codeTable {
		if code < ErrCodeTenantContextMissing && m.grpc == st.Code() {
			return New(code, st.Message())
		}
	}
	return New(ErrCodeInternal, st.Message())
}

/* ========================================================================
 * HTTP
 * ======================================================================== */

// HTTPStatus 业务错误对应的 HTTP 状态码，非业务错误为 500
func HTTPStatus(err error) int {
	bizErr, ok := AsBizError(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	return lookup(bizErr.Code).http
}

// ToHTTPResponse 返回状态码与响应体 {code, msg, data}
func ToHTTPResponse(err error) (int, fiber.Map) {
	if err == nil {
		return fiber.StatusOK, fiber.Map{"code": 0, "msg": "success"}
	}
	bizErr, ok := AsBizError(err)
	if !ok {
		return fiber.StatusInternalServerError, fiber.Map{
			"code": fiber.StatusInternalServerError,
			"msg":  "internal server error",
		}
	}
	body := fiber.Map{"code": int(bizErr.Code), "msg": bizErr.Message}
	if len(bizErr.Details) > 0 {
		body["data"] = bizErr.Details
	}
	return HTTPStatus(bizErr), body
}
