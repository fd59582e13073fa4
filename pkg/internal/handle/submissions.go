package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/types"
)

// GetSubmission 读取自己的一条提交记录.
//
//	@Summary	提交详情
//	@Tags		提交
//	@Produce	json
//	@Param		id		path		string	true	"提交 ID（文件名）"
//	@Param		userId	query		string	true	"贡献者 ID"
//	@Success	200		{object}	types.Submission
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/v1/submissions/{id} [get]
func GetSubmission(c *gin.Context) {
	svc := service.NewSubmissionServiceFromContext(c.Request.Context())

	sub, err := svc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubmission(sub))
}

// ListSubmissions 贡献者的全部提交，按上传时间倒序.
//
//	@Summary	提交列表
//	@Tags		提交
//	@Produce	json
//	@Param		userId	query		string	true	"贡献者 ID"
//	@Success	200		{array}		types.Submission
//	@Failure	400		{object}	types.ErrorResponse
//	@Router		/api/v1/submissions [get]
func ListSubmissions(c *gin.Context) {
	svc := service.NewSubmissionServiceFromContext(c.Request.Context())

	subs, err := svc.List(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]types.Submission, 0, len(subs))
	for i := range subs {
		out = append(out, toSubmission(&subs[i]))
	}

	c.JSON(http.StatusOK, out)
}

// DeleteSubmission 删除未售出的提交（请求体形式）.
//
//	@Summary		删除提交
//	@Description	只能删除自己的、尚未售出的提交
//	@Tags			提交
//	@Accept			json
//	@Produce		json
//	@Param			body	body		types.DeleteSubmissionRequest	true	"删除请求"
//	@Success		200		{object}	types.MessageResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		403		{object}	types.ErrorResponse
//	@Failure		404		{object}	types.ErrorResponse
//	@Router			/api/v1/submissions/delete [post]
func DeleteSubmission(c *gin.Context) {
	var req types.DeleteSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 请求体不完整统一按缺字段处理
		writeError(c, &service.Error{Kind: service.ErrValidation, Msg: "Missing id or userId", Err: err})
		return
	}

	deleteSubmission(c, req.UserID, req.ID)
}

// DeleteSubmissionByID 删除未售出的提交（REST 形式）.
//
//	@Summary	删除提交
//	@Tags		提交
//	@Produce	json
//	@Param		id		path		string	true	"提交 ID"
//	@Param		userId	query		string	true	"贡献者 ID"
//	@Success	200		{object}	types.MessageResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	403		{object}	types.ErrorResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/api/v1/submissions/{id} [delete]
func DeleteSubmissionByID(c *gin.Context) {
	deleteSubmission(c, userID(c), c.Param("id"))
}

func deleteSubmission(c *gin.Context, owner, id string) {
	svc := service.NewSubmissionServiceFromContext(c.Request.Context())

	if err := svc.Delete(c.Request.Context(), owner, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.MessageResponse{Message: service.MsgDeleted})
}

// ReprocessSubmission 为已上传对象重新发布入库事件.
//
//	@Summary	重新评分
//	@Tags		提交
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.ReprocessRequest	true	"对象位置"
//	@Success	202		{object}	types.ReprocessResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	503		{object}	types.ErrorResponse
//	@Router		/api/v1/submissions/reprocess [post]
func ReprocessSubmission(c *gin.Context) {
	var req types.ReprocessRequest
	if !bindJSON(c, &req) {
		return
	}

	svc := service.NewUploadServiceFromContext(c.Request.Context())

	id, err := svc.Reprocess(c.Request.Context(), service.ReprocessRequest{Bucket: req.Bucket, ObjectKey: req.ObjectKey})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, types.ReprocessResponse{MessageID: id})
}

// UploadURL 签发 30 分钟有效的上传链接.
//
//	@Summary		申请上传链接
//	@Description	对象键为 <userId>/<fileName>，上传时可携带 x-amz-meta-userid/title/description/usertags 元数据
//	@Tags			提交
//	@Accept			json
//	@Produce		json
//	@Param			body	body		types.UploadURLRequest	true	"上传请求"
//	@Success		200		{object}	types.UploadURLResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Router			/api/v1/storage/upload-url [post]
func UploadURL(c *gin.Context) {
	var req types.UploadURLRequest
	if !bindJSON(c, &req) {
		return
	}

	svc := service.NewUploadServiceFromContext(c.Request.Context())

	u, err := svc.PresignUpload(c.Request.Context(), req.UserID, req.FileName)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.UploadURLResponse{
		SasURL:    u.URL,
		Bucket:    u.Bucket,
		ObjectKey: u.ObjectKey,
		ExpiresAt: u.ExpiresAt.Format(timeLayout),
	})
}
