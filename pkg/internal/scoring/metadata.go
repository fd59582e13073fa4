package scoring

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/yeisme/datanexus/pkg/internal/model"
)

// 对象用户元数据的键（小写，不含 x-amz-meta- 前缀）.
const (
	MetaUserID      = "userid"
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaUserTags    = "usertags"

	// DefaultOwnerID 上传未携带 userid 时的归属
	DefaultOwnerID = "public_contributor"
)

// ContributorMetadata 贡献者随上传提交的元数据.
type ContributorMetadata struct {
	OwnerID     string
	Title       string
	Description string
	Tags        []string
}

// HasClaims 是否提供了可校验的标签或描述.
func (m ContributorMetadata) HasClaims() bool {
	return len(m.Tags) > 0 || m.Description != ""
}

// ParseContributorMetadata 从对象用户元数据解析贡献者元数据.
// 键不区分大小写；title/description/usertags 为百分号编码，usertags 以逗号分隔.
func ParseContributorMetadata(raw map[string]string) ContributorMetadata {
	norm := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		k = strings.TrimPrefix(k, "x-amz-meta-")
		norm[k] = v
	}

	md := ContributorMetadata{
		OwnerID:     strings.TrimSpace(norm[MetaUserID]),
		Title:       unescape(norm[MetaTitle]),
		Description: unescape(norm[MetaDescription]),
	}

	if md.OwnerID == "" {
		md.OwnerID = DefaultOwnerID
	}

	for _, t := range strings.Split(unescape(norm[MetaUserTags]), ",") {
		if t = strings.TrimSpace(t); t != "" {
			md.Tags = append(md.Tags, t)
		}
	}

	return md
}

// unescape 百分号解码，'+' 保持原样；非法编码时返回原文.
func unescape(s string) string {
	if s == "" {
		return ""
	}

	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}

	return out
}

var (
	imageExts = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}}
	textExts  = map[string]struct{}{
		".txt": {}, ".py": {}, ".dart": {}, ".js": {}, ".md": {}, ".json": {}, ".html": {}, ".css": {},
	}
)

// SubmissionID 提交 ID 取对象键的文件名部分.
func SubmissionID(objectKey string) string {
	return path.Base(strings.ReplaceAll(objectKey, "\\", "/"))
}

// DetectKind 按扩展名（不区分大小写）判断内容类型.
func DetectKind(fileName string) model.ContentKind {
	ext := strings.ToLower(path.Ext(fileName))

	if _, ok := imageExts[ext]; ok {
		return model.ContentKindImage
	}

	if _, ok := textExts[ext]; ok {
		return model.ContentKindCodeOrText
	}

	return model.ContentKindOther
}

// DecodeText 按 UTF-8 解码，丢弃非法字节.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b))

	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			sb.WriteRune(r)
		}

		b = b[size:]
	}

	return sb.String()
}

// Prefix 返回前 n 个字符（按 rune 计）.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}

		count++
	}

	return s
}
