package infrastructure

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (*GormOrderRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormOrderRepository(gdb), mock
}

func newOrder() *domain.VoucherOrder {
	o, _ := domain.NewVoucherOrder(&domain.SeckillMessage{UserID: 1010, VoucherID: 7, OrderID: 99}, time.Now())
	return o
}

const deductSQL = "UPDATE `tb_seckill_voucher` SET `stock`=stock - 1 WHERE voucher_id = ? AND stock > 0"

func TestCreateOrderWithStockDeduction_Commits(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deductSQL)).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `tb_voucher_order`")).WillReturnResult(sqlmock.NewResult(99, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateOrderWithStockDeduction(context.Background(), newOrder()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderWithStockDeduction_NoStockRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deductSQL)).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CreateOrderWithStockDeduction(context.Background(), newOrder())
	assert.ErrorIs(t, err, domain.ErrStockNotEnough)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderWithStockDeduction_DuplicateRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deductSQL)).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `tb_voucher_order`")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry '1010-7' for key 'uk_user_voucher'"})
	mock.ExpectRollback()

	err := repo.CreateOrderWithStockDeduction(context.Background(), newOrder())
	assert.ErrorIs(t, err, domain.ErrOrderExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByUserAndVoucher(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `tb_voucher_order` WHERE user_id = ? AND voucher_id = ?")).
		WithArgs(1010, 7).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	ok, err := repo.ExistsByUserAndVoucher(context.Background(), 1010, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `tb_voucher_order` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
