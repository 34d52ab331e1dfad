package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"nft_auction/service"
	"nft_auction/utils"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// confirmTimeout 广播后等待回执的最长时间
const confirmTimeout = 3 * time.Minute

// EtherPayer 平台热钱包向用户转账（提现与费用池提取）
type EtherPayer struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	// 串行发送，避免nonce冲突
	mu sync.Mutex
}

// NewEtherPayer 创建转账器
func NewEtherPayer(ctx context.Context, rpcUrl, privateKey string) (*EtherPayer, error) {
	// 连接区块链节点
	client, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		utils.Logger.Error("连接区块链节点失败", zap.String("rpcUrl", rpcUrl), zap.Error(err))
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		utils.Logger.Error("解析私钥失败", zap.Error(err))
		return nil, err
	}

	// 获取链ID
	chainID, err := client.ChainID(ctx)
	if err != nil {
		utils.Logger.Error("获取链ID失败", zap.Error(err))
		return nil, err
	}

	return &EtherPayer{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// From 热钱包地址
func (p *EtherPayer) From() common.Address {
	return p.from
}

// Pay 发送原生币转账并等待上链，返回交易哈希。
// 广播前失败或链上回滚时返回包装ErrPayoutNotExecuted的错误；广播后确认失败时返回交易哈希和普通错误。
func (p *EtherPayer) Pay(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("%w: invalid recipient %q", service.ErrPayoutNotExecuted, to)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", service.ErrPayoutNotExecuted)
	}
	toAddr := common.HexToAddress(to)

	p.mu.Lock()
	tx, err := p.buildTx(ctx, toAddr, amount.BigInt())
	if err != nil {
		p.mu.Unlock()
		utils.Logger.Error("构建转账交易失败", zap.String("to", to), zap.String("amount", amount.String()), zap.Error(err))
		return "", fmt.Errorf("%w: %v", service.ErrPayoutNotExecuted, err)
	}
	err = p.client.SendTransaction(ctx, tx)
	p.mu.Unlock()
	if err != nil {
		utils.Logger.Error("发送转账交易失败", zap.String("to", to), zap.String("txHash", tx.Hash().Hex()), zap.Error(err))
		return "", classifySendErr(err)
	}

	// 交易已广播：请求取消不影响等待，只受确认超时限制
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, p.client, tx)
	if err != nil {
		utils.Logger.Error("等待交易上链失败", zap.String("txHash", tx.Hash().Hex()), zap.Error(err))
		return tx.Hash().Hex(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		utils.Logger.Error("交易执行失败（状态为0）", zap.String("txHash", tx.Hash().Hex()))
		return "", fmt.Errorf("%w: transaction %s reverted", service.ErrPayoutNotExecuted, tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

// classifySendErr 节点返回JSON-RPC错误说明交易被拒绝；网络错误无法确定节点是否已收到
func classifySendErr(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %v", service.ErrPayoutNotExecuted, err)
	}
	return err
}

// buildTx 构建并签名转账交易；支持EIP-1559时使用动态手续费
func (p *EtherPayer) buildTx(ctx context.Context, to common.Address, value *big.Int) (*types.Transaction, error) {
	nonce, err := p.client.PendingNonceAt(ctx, p.from)
	if err != nil {
		return nil, err
	}

	head, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := p.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, err
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   p.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       params.TxGas,
			To:        &to,
			Value:     value,
		})
	} else {
		gasPrice, err := p.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      params.TxGas,
			To:       &to,
			Value:    value,
		})
	}

	return types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
}

// Close 关闭节点连接
func (p *EtherPayer) Close() {
	p.client.Close()
}

// DryRunPayer 未配置链节点时使用：只记录日志，不发生真实转账
type DryRunPayer struct{}

// Pay 实现service.Payer
func (DryRunPayer) Pay(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	utils.Logger.Warn("未配置链节点，跳过真实转账", zap.String("to", to), zap.String("amount", amount.String()))
	return "", nil
}
