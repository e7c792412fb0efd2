package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// vendorToken 厂家 API 认证
type vendorToken struct {
	AppId     string `json:"appId"`
	SecureKey string `json:"secureKey"`
}

type vendorRequest struct {
	Token *vendorToken   `json:"token"`
	Data  map[string]any `json:"data"`
}

type vendorResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// VendorClient 厂家云端 API 客户端：激活/停用时同步设备工作模式
type VendorClient struct {
	httpClient *resty.Client
	token      *vendorToken
	logger     *zap.Logger
}

var _ VendorNotifier = (*VendorClient)(nil)

// NewVendorClient 创建厂家客户端
func NewVendorClient(baseURL, appID, secretKey string, logger *zap.Logger) *VendorClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &VendorClient{
		httpClient: client,
		token:      &vendorToken{AppId: appID, SecureKey: secretKey},
		logger:     logger,
	}
}

// NotifyActivation 激活后切换设备到实时工作模式
func (c *VendorClient) NotifyActivation(ctx context.Context, deviceID, profileID string) error {
	return c.setWorkingMode(ctx, deviceID, map[string]any{
		"deviceId":  deviceID,
		"profileId": profileID,
		"mode":      "realtime",
	})
}

// NotifyDeactivation 停用后切回待机模式
func (c *VendorClient) NotifyDeactivation(ctx context.Context, deviceID string) error {
	return c.setWorkingMode(ctx, deviceID, map[string]any{
		"deviceId": deviceID,
		"mode":     "standby",
	})
}

func (c *VendorClient) setWorkingMode(ctx context.Context, deviceID string, data map[string]any) error {
	var response vendorResponse
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(vendorRequest{Token: c.token, Data: data}).
		SetResult(&response).
		Post("/device/setWorkingMode")
	if err != nil {
		return fmt.Errorf("failed to call vendor API: %w", err)
	}
	if response.Status != 0 {
		return fmt.Errorf("vendor API error: %s (status: %d)", response.Msg, response.Status)
	}

	c.logger.Debug("Vendor working mode updated",
		zap.String("device_id", deviceID),
	)
	return nil
}
