package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	talentlayer "github.com/talentlayer/talentlayer-go"
)

// errorBody is the JSON body of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	State   string `json:"state,omitempty"`
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case talentlayer.ErrCodeNotFound, talentlayer.ErrCodeProposalNotFound,
		talentlayer.ErrCodeServiceNotFound, talentlayer.ErrCodeTransactionNotFound:
		return http.StatusNotFound
	case talentlayer.ErrCodeInvalidArgument, talentlayer.ErrCodeInvalidAmount,
		talentlayer.ErrCodeInvalidArbitrator, talentlayer.ErrCodeInvalidFeeRate,
		talentlayer.ErrCodeMissingPlatformID, talentlayer.ErrCodeMissingContentID,
		talentlayer.ErrCodeInsufficientFunds:
		return http.StatusBadRequest
	case talentlayer.ErrCodeAborted:
		return http.StatusConflict
	case talentlayer.ErrCodeSubgraph, talentlayer.ErrCodeFeeResolution,
		talentlayer.ErrCodeApprovalSubmission, talentlayer.ErrCodeApprovalFailed,
		talentlayer.ErrCodeEscrowCreation, talentlayer.ErrCodeEscrowCall:
		return http.StatusBadGateway
	case talentlayer.ErrCodeMissingLedger, talentlayer.ErrCodeUnsupportedNetwork,
		talentlayer.ErrCodeMissingDeployment:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	code := talentlayer.CodeOf(err)
	body := errorBody{Code: code, Message: err.Error(), State: string(talentlayer.StateOf(err))}
	if code == "" {
		body.Code = "internal_error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(code), body)
}
