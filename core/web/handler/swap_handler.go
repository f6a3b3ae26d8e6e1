package handler

import (
	"errors"
	"net/http"
	"runtime"

	"github.com/flowmintdao/solana_swap_engine/core/engine"
	"github.com/flowmintdao/solana_swap_engine/core/receipt"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func PrintStack() string {
	var buf [4096]byte
	n := runtime.Stack(buf[:], false)
	return string(buf[:n])
}

type ExecuteSwapRequest struct {
	UserAddress   string  `json:"user_address" binding:"required"`
	InputMint     string  `json:"input_mint" binding:"required"`
	OutputMint    string  `json:"output_mint" binding:"required"`
	AmountIn      string  `json:"amount_in" binding:"required"`
	SlippageBps   int     `json:"slippage_bps"`
	SwapMode      string  `json:"swap_mode"`
	ProtectedMode bool    `json:"protected_mode"`
	Profile       string  `json:"profile"`
	TradeValueUSD float64 `json:"trade_value_usd"`
}

type SubmitSignedRequest struct {
	SignedTransaction string `json:"signed_transaction" binding:"required"`
}

type UpdateStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	TxSignature string `json:"tx_signature"`
	ErrMsg      string `json:"error"`
}

// ExecuteSwapHandler runs the quote, risk check and build pipeline and
// returns the unsigned transaction for the caller to sign.
func ExecuteSwapHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inp ExecuteSwapRequest
		if err := c.ShouldBind(&inp); err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err}).Error("ExecuteSwapHandler parse parmeter failed")
			respondError(c, http.StatusBadRequest, "invalid input parameters")
			return
		}

		res, err := e.ExecuteSwap(c.Request.Context(), engine.Intent{
			UserAddress:   inp.UserAddress,
			InputMint:     inp.InputMint,
			OutputMint:    inp.OutputMint,
			AmountIn:      inp.AmountIn,
			SlippageBps:   inp.SlippageBps,
			SwapMode:      inp.SwapMode,
			ProtectedMode: inp.ProtectedMode,
			Profile:       inp.Profile,
			TradeValueUSD: inp.TradeValueUSD,
		})
		if err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err.Error()}).Error("ExecuteSwapHandler execute failed")
			respondError(c, http.StatusInternalServerError, "execute swap failed")
			return
		}

		respondOK(c, res)
	}
}

// SubmitSignedHandler broadcasts a signed transaction and waits for the
// chain outcome.
func SubmitSignedHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		receiptID := c.Param("receipt_id")

		var inp SubmitSignedRequest
		if err := c.ShouldBind(&inp); err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err}).Error("SubmitSignedHandler parse parmeter failed")
			respondError(c, http.StatusBadRequest, "invalid input parameters")
			return
		}

		res, err := e.SubmitSigned(c.Request.Context(), receiptID, inp.SignedTransaction)
		if err != nil {
			if errors.Is(err, receipt.ErrNotFound) {
				respondError(c, http.StatusNotFound, "receipt not found")
				return
			}
			logger.Logrus.WithFields(logrus.Fields{"ReceiptID": receiptID, "ErrMsg": err.Error()}).Error("SubmitSignedHandler submit failed")
			respondError(c, http.StatusConflict, err.Error())
			return
		}

		respondOK(c, res)
	}
}

func GetReceiptHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		receiptID := c.Param("receipt_id")

		rec, err := e.GetReceipt(c.Request.Context(), receiptID)
		if err != nil {
			if errors.Is(err, receipt.ErrNotFound) {
				respondError(c, http.StatusNotFound, "receipt not found")
				return
			}
			logger.Logrus.WithFields(logrus.Fields{"ReceiptID": receiptID, "ErrMsg": err.Error()}).Error("GetReceiptHandler query failed")
			respondError(c, http.StatusInternalServerError, "query receipt failed")
			return
		}

		respondOK(c, rec)
	}
}

func GetReceiptTimelineHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		receiptID := c.Param("receipt_id")

		events, err := e.GetReceiptTimeline(c.Request.Context(), receiptID)
		if err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ReceiptID": receiptID, "ErrMsg": err.Error()}).Error("GetReceiptTimelineHandler query failed")
			respondError(c, http.StatusInternalServerError, "query receipt timeline failed")
			return
		}

		respondOK(c, events)
	}
}

// UpdateReceiptStatusHandler is the confirmation callback. A watcher that
// observed the chain outcome finalizes a receipt the engine returned while
// it was still pending.
func UpdateReceiptStatusHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		receiptID := c.Param("receipt_id")

		var inp UpdateStatusRequest
		if err := c.ShouldBind(&inp); err != nil {
			logger.Logrus.WithFields(logrus.Fields{"ErrMsg": err}).Error("UpdateReceiptStatusHandler parse parmeter failed")
			respondError(c, http.StatusBadRequest, "invalid input parameters")
			return
		}

		err := e.UpdateReceiptStatus(c.Request.Context(), receiptID, inp.Status, inp.TxSignature, inp.ErrMsg)
		if err != nil {
			if errors.Is(err, receipt.ErrNotFound) {
				respondError(c, http.StatusNotFound, "receipt not found")
				return
			}
			if errors.Is(err, receipt.ErrTerminalStatus) {
				respondError(c, http.StatusConflict, "receipt already finalized")
				return
			}
			logger.Logrus.WithFields(logrus.Fields{"ReceiptID": receiptID, "ErrMsg": err.Error()}).Error("UpdateReceiptStatusHandler update failed")
			respondError(c, http.StatusInternalServerError, "update receipt status failed")
			return
		}

		respondOK(c, nil)
	}
}
