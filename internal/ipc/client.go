package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"pagepass/internal/api"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return fromWire(c.client.Call("PagePass."+method, req, resp))
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddBook creates a book owned by userID.
func (c *Client) AddBook(userID, title, author string) (api.Book, error) {
	var resp BookResponse
	err := c.call("AddBook", AddBookRequest{UserID: userID, Title: title, Author: author}, &resp)
	return resp.Book, err
}

// Book returns one book.
func (c *Client) Book(bookID int64) (api.Book, error) {
	var resp BookResponse
	err := c.call("GetBook", BookRequest{BookID: bookID}, &resp)
	return resp.Book, err
}

// Books lists books matching the filter.
func (c *Client) Books(req BookListRequest) ([]api.Book, error) {
	var resp BookListResponse
	err := c.call("ListBooks", req, &resp)
	return resp.Items, err
}

// RemoveBook deletes a book owned by userID.
func (c *Client) RemoveBook(userID string, bookID int64) error {
	return c.call("RemoveBook", BookRequest{UserID: userID, BookID: bookID}, &EmptyResponse{})
}

// Borrow requests an available book.
func (c *Client) Borrow(userID string, bookID int64) (api.Handoff, error) {
	var resp HandoffResponse
	err := c.call("Borrow", BookRequest{UserID: userID, BookID: bookID}, &resp)
	return resp.Handoff, err
}

// Ready marks a held book ready to pass on.
func (c *Client) Ready(userID string, bookID int64) (api.ReadyResponse, error) {
	var resp ReadyResponse
	err := c.call("Ready", BookRequest{UserID: userID, BookID: bookID}, &resp)
	return resp.Ready, err
}

// Recall asks for a lent book back.
func (c *Client) Recall(userID string, bookID int64) (api.Book, error) {
	var resp BookResponse
	err := c.call("Recall", BookRequest{UserID: userID, BookID: bookID}, &resp)
	return resp.Book, err
}

// ToggleGift flips the gift flag.
func (c *Client) ToggleGift(userID string, bookID int64) (api.GiftFlag, error) {
	var resp GiftResponse
	err := c.call("ToggleGift", BookRequest{UserID: userID, BookID: bookID}, &resp)
	return resp.Flag, err
}

// ToggleShelf takes a book off the shelf or puts it back.
func (c *Client) ToggleShelf(userID string, bookID int64) (api.Book, error) {
	var resp BookResponse
	err := c.call("ToggleShelf", BookRequest{UserID: userID, BookID: bookID}, &resp)
	return resp.Book, err
}

// JoinQueue adds userID to a waitlist.
func (c *Client) JoinQueue(userID string, bookID int64) (api.JoinResult, error) {
	var resp JoinResponse
	err := c.call("JoinQueue", BookRequest{UserID: userID, BookID: bookID}, &resp)
	return resp.Joined, err
}

// LeaveQueue removes userID from a waitlist.
func (c *Client) LeaveQueue(userID string, bookID int64) error {
	return c.call("LeaveQueue", BookRequest{UserID: userID, BookID: bookID}, &EmptyResponse{})
}

// Pass declines the current offer.
func (c *Client) Pass(userID string, bookID int64, reason string) (api.PassResult, error) {
	var resp PassResponse
	err := c.call("Pass", PassRequest{UserID: userID, BookID: bookID, Reason: reason}, &resp)
	return resp.Result, err
}

// Queue returns a book's waitlist in order.
func (c *Client) Queue(bookID int64) ([]api.QueueEntry, error) {
	var resp QueueResponse
	err := c.call("Queue", BookRequest{BookID: bookID}, &resp)
	return resp.Items, err
}

// Waitlists returns every queue userID is waiting in.
func (c *Client) Waitlists(userID string) ([]api.QueueEntry, error) {
	var resp QueueResponse
	err := c.call("Waitlists", BookRequest{UserID: userID}, &resp)
	return resp.Items, err
}

// Ownership returns a book's ownership chain.
func (c *Client) Ownership(bookID int64) ([]api.OwnershipRecord, error) {
	var resp OwnershipResponse
	err := c.call("Ownership", BookRequest{BookID: bookID}, &resp)
	return resp.Items, err
}

// OpenHandoffs lists handoffs awaiting userID or a counterparty.
func (c *Client) OpenHandoffs(userID string) ([]api.Handoff, error) {
	var resp HandoffListResponse
	err := c.call("OpenHandoffs", HandoffListRequest{UserID: userID}, &resp)
	return resp.Items, err
}

// Confirm confirms one side of a handoff.
func (c *Client) Confirm(userID, handoffID, role string) (api.ConfirmResult, error) {
	var resp ConfirmResponse
	err := c.call("Confirm", ConfirmRequest{UserID: userID, HandoffID: handoffID, Role: role}, &resp)
	return resp.Result, err
}

// ConfirmBatch confirms several handoffs independently.
func (c *Client) ConfirmBatch(userID string, items []api.BatchConfirmItem) (api.BatchSummary, error) {
	var resp BatchResponse
	err := c.call("ConfirmBatch", ConfirmBatchRequest{UserID: userID, Items: items}, &resp)
	return resp.Summary, err
}

// ConfirmWith confirms every open handoff between userID and counterpartyID.
func (c *Client) ConfirmWith(userID, counterpartyID string) (api.BatchSummary, error) {
	var resp BatchResponse
	err := c.call("ConfirmWith", ConfirmWithRequest{UserID: userID, CounterpartyID: counterpartyID}, &resp)
	return resp.Summary, err
}

// History queries the audit ledger.
func (c *Client) History(req HistoryRequest) ([]api.HistoryEvent, error) {
	var resp HistoryResponse
	err := c.call("History", req, &resp)
	return resp.Items, err
}

// HistoryStats counts ledger events by type.
func (c *Client) HistoryStats(req HistoryRequest) ([]api.TypeCount, error) {
	var resp HistoryStatsResponse
	err := c.call("HistoryStats", req, &resp)
	return resp.Items, err
}

// Sweep runs the offer-expiry sweep immediately.
func (c *Client) Sweep() (api.SweepReport, error) {
	var resp SweepResponse
	err := c.call("Sweep", SweepRequest{}, &resp)
	return resp.Report, err
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification(userID string) (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
